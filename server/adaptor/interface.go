package adaptor

import (
	"context"

	"github.com/ponyo877/replicator/server/domain"
)

type Relay interface {
	Connect(roomPath domain.RoomPath, remote string) (*domain.Session, error)
	HandleMessage(session *domain.Session, data []byte)
	Disconnect(session *domain.Session, cause error)
}

type Usecase interface {
	ListRooms() []domain.Room
	ListMembers(roomPath domain.RoomPath) ([]domain.Member, error)
	ReloadRoom(roomPath domain.RoomPath) (int, error)
	ListHistory(ctx context.Context, roomPath domain.RoomPath, pattern string, limit int) ([]domain.StreamEvent, error)
	GetStats() domain.StreamStats
}
