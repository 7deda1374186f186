package usecase

import (
	"context"
	"fmt"

	"github.com/ponyo877/replicator/protocol"
	"github.com/ponyo877/replicator/server/adaptor"
	"github.com/ponyo877/replicator/server/domain"
)

var (
	historyLimit int = 1000
)

type Usecase struct {
	repo          Repository
	streamManager domain.StreamManager
}

// NewUsecase serves the admin surface. repo may be nil when history is
// disabled.
func NewUsecase(repo Repository, streamManager domain.StreamManager) adaptor.Usecase {
	return &Usecase{
		repo:          repo,
		streamManager: streamManager,
	}
}

func (u Usecase) ListRooms() []domain.Room {
	paths := u.streamManager.GetActiveRooms()
	rooms := make([]domain.Room, 0, len(paths))
	for _, path := range paths {
		members := u.streamManager.GetActiveClients(path)
		if len(members) == 0 {
			continue
		}
		rooms = append(rooms, domain.NewRoom(path, members))
	}
	return rooms
}

func (u Usecase) ListMembers(roomPath domain.RoomPath) ([]domain.Member, error) {
	if !u.streamManager.IsRoomActive(roomPath) {
		return nil, fmt.Errorf("list members of %s: %w", roomPath, domain.ErrRoomNotFound)
	}
	sessions := u.streamManager.GetActiveClients(roomPath)
	members := make([]domain.Member, 0, len(sessions))
	for _, s := range sessions {
		members = append(members, domain.NewMember(s))
	}
	return members, nil
}

func (u Usecase) ReloadRoom(roomPath domain.RoomPath) (int, error) {
	frame, err := protocol.EncodeReload()
	if err != nil {
		return 0, fmt.Errorf("encode reload: %w", err)
	}
	sent, err := u.streamManager.BroadcastToRoom(roomPath, frame)
	if err != nil {
		return 0, fmt.Errorf("reload %s: %w", roomPath, err)
	}
	return sent, nil
}

func (u Usecase) ListHistory(ctx context.Context, roomPath domain.RoomPath, pattern string, limit int) ([]domain.StreamEvent, error) {
	if u.repo == nil {
		return nil, domain.ErrHistoryDisabled
	}
	if limit <= 0 || limit > historyLimit {
		limit = historyLimit
	}
	var (
		events []domain.StreamEvent
		err    error
	)
	if pattern == "" {
		events, err = u.repo.ListEvents(ctx, roomPath, limit)
	} else {
		events, err = u.repo.ListEventsByQuery(ctx, roomPath, pattern, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("error listing history: %w", err)
	}
	return events, nil
}

func (u Usecase) GetStats() domain.StreamStats {
	return u.streamManager.GetStats()
}
