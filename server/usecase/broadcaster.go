package usecase

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ponyo877/replicator/protocol"
	"github.com/ponyo877/replicator/server/domain"
)

// Broadcaster pushes every room's snapshot to its members at a fixed rate.
type Broadcaster struct {
	streamManager domain.StreamManager
	interval      time.Duration
	mirror        Mirror
	logger        *slog.Logger
	ticks         atomic.Int64
}

func NewBroadcaster(streamManager domain.StreamManager, interval time.Duration, mirror Mirror, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		streamManager: streamManager,
		interval:      interval,
		mirror:        mirror,
		logger:        logger,
	}
}

func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	b.logger.Info("broadcaster.started", "interval", b.interval.String())
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("broadcaster.stopped", "ticks", b.ticks.Load())
			return
		case <-ticker.C:
			b.Tick()
		}
	}
}

// Tick serializes each non-empty room once and queues the same bytes for
// every active member, the sender included.
func (b *Broadcaster) Tick() {
	b.ticks.Add(1)
	b.streamManager.EachRoom(func(roomPath domain.RoomPath, members []*domain.Session) {
		active := make([]*domain.Session, 0, len(members))
		others := make([]protocol.Shared, 0, len(members))
		for _, m := range members {
			if !m.IsActive() {
				continue
			}
			active = append(active, m)
			others = append(others, m.Snapshot())
		}
		if len(active) == 0 {
			return
		}

		frame, err := protocol.EncodeOthers(others)
		if err != nil {
			b.logger.Error("broadcaster.encode_failed", "room", roomPath.String(), "error", err)
			return
		}

		sent, dropped := 0, 0
		for _, m := range active {
			if m.Enqueue(frame) {
				sent++
			} else {
				dropped++
			}
		}
		b.streamManager.CountBroadcast(sent, dropped)
		if dropped > 0 {
			b.logger.Debug("broadcaster.dropped", "room", roomPath.String(), "dropped", dropped)
		}

		if b.mirror != nil {
			b.mirror.Publish(roomPath, frame)
		}
	})
}

func (b *Broadcaster) Ticks() int64 {
	return b.ticks.Load()
}
