package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
	"github.com/ponyo877/replicator/server/domain"
	"github.com/ponyo877/replicator/server/usecase"
)

const driverName = "sqlite3_with_go_func"

var registerOnce sync.Once

func regex(re, s string) (bool, error) {
	return regexp.MatchString(re, s)
}

const schema = `
CREATE TABLE IF NOT EXISTS session_events (
	id         TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	session_id TEXT NOT NULL,
	room       TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	remote     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS session_events_room ON session_events (room, id);
`

// Open opens the history database with a REGEXP function available to
// queries and creates the schema when missing.
func Open(path string) (*sql.DB, error) {
	registerOnce.Do(func() {
		sql.Register(driverName,
			&sqlite3.SQLiteDriver{
				ConnectHook: func(conn *sqlite3.SQLiteConn) error {
					return conn.RegisterFunc("regexp", regex, true)
				},
			})
	})
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db %s: %w", path, err)
	}
	// ":memory:" databases exist per connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate db %s: %w", path, err)
	}
	return db, nil
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) usecase.Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateEvent(ctx context.Context, event domain.StreamEvent) error {
	if !event.IsValid() {
		return fmt.Errorf("invalid event %q", event.String())
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.ID == "" {
		event.ID = ulid.MustNew(ulid.Timestamp(event.Timestamp), ulid.DefaultEntropy()).String()
	}
	query := "INSERT INTO session_events (id, type, session_id, room, name, remote, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)"
	if _, err := r.db.ExecContext(ctx, query,
		event.ID, event.Type.String(), event.SessionID, event.RoomPath.String(),
		event.Name, event.Remote, event.Timestamp.UTC(),
	); err != nil {
		return fmt.Errorf("failed to insert event for session %s: %w", event.SessionID, err)
	}
	return nil
}

// ListEvents returns the newest events of a room first.
func (r *Repository) ListEvents(ctx context.Context, roomPath domain.RoomPath, limit int) ([]domain.StreamEvent, error) {
	query := "SELECT id, type, session_id, room, name, remote, created_at FROM session_events WHERE room = ? ORDER BY id DESC LIMIT ?"
	rows, err := r.db.QueryContext(ctx, query, roomPath.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events for room %s: %w", roomPath, err)
	}
	defer rows.Close()
	return scanEvents(rows, roomPath)
}

// ListEventsByQuery filters by a regular expression matched against the
// display name or the session id.
func (r *Repository) ListEventsByQuery(ctx context.Context, roomPath domain.RoomPath, pattern string, limit int) ([]domain.StreamEvent, error) {
	if _, err := regexp.Compile(pattern); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	query := "SELECT id, type, session_id, room, name, remote, created_at FROM session_events WHERE room = ? AND (name REGEXP ? OR session_id REGEXP ?) ORDER BY id DESC LIMIT ?"
	rows, err := r.db.QueryContext(ctx, query, roomPath.String(), pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events for room %s: %w", roomPath, err)
	}
	defer rows.Close()
	return scanEvents(rows, roomPath)
}

func scanEvents(rows *sql.Rows, roomPath domain.RoomPath) ([]domain.StreamEvent, error) {
	events := []domain.StreamEvent{}
	for rows.Next() {
		var (
			e         domain.StreamEvent
			eventType string
			room      string
		)
		if err := rows.Scan(&e.ID, &eventType, &e.SessionID, &room, &e.Name, &e.Remote, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Type = domain.ParseStreamEventType(eventType)
		e.RoomPath = domain.RoomPath(room)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over events for room %s: %w", roomPath, err)
	}
	return events, nil
}
