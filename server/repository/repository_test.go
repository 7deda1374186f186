package repository_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ponyo877/replicator/server/domain"
	"github.com/ponyo877/replicator/server/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepository(t *testing.T) (*repository.Repository, func()) {
	t.Helper()
	db, err := repository.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	repo := repository.NewRepository(db).(*repository.Repository)
	return repo, func() { db.Close() }
}

func TestRepository_CreateAndListEvents(t *testing.T) {
	repo, closeDB := newRepository(t)
	defer closeDB()
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	events := []domain.StreamEvent{
		{Type: domain.EventJoin, SessionID: "a", RoomPath: "/lobby", Timestamp: base},
		{Type: domain.EventJoin, SessionID: "b", RoomPath: "/lobby", Timestamp: base.Add(time.Second)},
		{Type: domain.EventLeave, SessionID: "a", RoomPath: "/lobby", Name: "Ada", Timestamp: base.Add(2 * time.Second)},
		{Type: domain.EventJoin, SessionID: "c", RoomPath: "/other", Timestamp: base.Add(3 * time.Second)},
	}
	for _, e := range events {
		require.NoError(t, repo.CreateEvent(ctx, e))
	}

	got, err := repo.ListEvents(ctx, "/lobby", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, domain.EventLeave, got[0].Type, "newest first")
	assert.Equal(t, "Ada", got[0].Name)
	assert.Equal(t, "b", got[1].SessionID)
	assert.Equal(t, "a", got[2].SessionID)
	assert.Len(t, got[0].ID, 26)
	assert.True(t, got[2].Timestamp.Equal(base))

	limited, err := repo.ListEvents(ctx, "/lobby", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	empty, err := repo.ListEvents(ctx, "/nowhere", 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRepository_ListEventsByQuery(t *testing.T) {
	repo, closeDB := newRepository(t)
	defer closeDB()
	ctx := context.Background()

	for i, name := range []string{"Ada", "Alan", "Grace"} {
		require.NoError(t, repo.CreateEvent(ctx, domain.StreamEvent{
			Type:      domain.EventLeave,
			SessionID: "s" + name,
			RoomPath:  "/lab",
			Name:      name,
			Timestamp: time.Now().Add(time.Duration(i) * time.Millisecond),
		}))
	}

	got, err := repo.ListEventsByQuery(ctx, "/lab", "^A", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Alan", got[0].Name)
	assert.Equal(t, "Ada", got[1].Name)

	_, err = repo.ListEventsByQuery(ctx, "/lab", "(", 10)
	assert.Error(t, err)
}

func TestRepository_RejectsInvalidEvent(t *testing.T) {
	repo, closeDB := newRepository(t)
	defer closeDB()

	err := repo.CreateEvent(context.Background(), domain.StreamEvent{Type: domain.EventJoin})
	assert.Error(t, err)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	db, err := repository.Open(path)
	require.NoError(t, err)
	repo := repository.NewRepository(db)
	require.NoError(t, repo.CreateEvent(context.Background(), domain.StreamEvent{
		Type: domain.EventJoin, SessionID: "a", RoomPath: "default",
	}))
	require.NoError(t, db.Close())

	db, err = repository.Open(path)
	require.NoError(t, err)
	defer db.Close()

	got, err := repository.NewRepository(db).ListEvents(context.Background(), "default", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
