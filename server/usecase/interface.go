package usecase

import (
	"context"

	"github.com/ponyo877/replicator/server/domain"
)

type Repository interface {
	// Event
	CreateEvent(ctx context.Context, event domain.StreamEvent) error
	ListEvents(ctx context.Context, roomPath domain.RoomPath, limit int) ([]domain.StreamEvent, error)
	ListEventsByQuery(ctx context.Context, roomPath domain.RoomPath, pattern string, limit int) ([]domain.StreamEvent, error)
}

// Mirror receives a copy of every room snapshot after it was fanned out.
// Implementations must not block the broadcaster.
type Mirror interface {
	Publish(roomPath domain.RoomPath, frame []byte)
}
