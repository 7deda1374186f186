package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/ponyo877/replicator/server/domain"
	"github.com/redis/go-redis/v9"
)

const channelPrefix = "replicator:room:"

type snapshot struct {
	room  domain.RoomPath
	frame []byte
}

// RedisMirror republishes room snapshots on redis so other processes can
// observe rooms without joining them.
type RedisMirror struct {
	rdb     *redis.Client
	queue   chan snapshot
	log     *slog.Logger
	dropped atomic.Int64
}

// NewRedisMirror connects to redis and verifies connectivity.
func NewRedisMirror(ctx context.Context, addr string, db int, log *slog.Logger) (*RedisMirror, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis %s: %w", addr, err)
	}
	return &RedisMirror{
		rdb:   rdb,
		queue: make(chan snapshot, 256),
		log:   log,
	}, nil
}

// Publish queues a snapshot without blocking; snapshots are dropped while
// redis lags behind.
func (m *RedisMirror) Publish(room domain.RoomPath, frame []byte) {
	select {
	case m.queue <- snapshot{room: room, frame: frame}:
	default:
		m.dropped.Add(1)
	}
}

func (m *RedisMirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-m.queue:
			if err := m.rdb.Publish(ctx, Channel(s.room), s.frame).Err(); err != nil && ctx.Err() == nil {
				m.log.Warn("mirror.publish_failed", "room", s.room.String(), "error", err)
			}
		}
	}
}

// Subscribe delivers mirrored snapshots of every room until ctx is done.
func (m *RedisMirror) Subscribe(ctx context.Context, fn func(room domain.RoomPath, frame []byte)) {
	pubsub := m.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			room := domain.RoomPath(strings.TrimPrefix(msg.Channel, channelPrefix))
			fn(room, []byte(msg.Payload))
		}
	}
}

func (m *RedisMirror) Dropped() int64 { return m.dropped.Load() }

func (m *RedisMirror) Close() { _ = m.rdb.Close() }

// Channel is the pub/sub channel carrying a room's snapshots.
func Channel(room domain.RoomPath) string { return channelPrefix + room.String() }
