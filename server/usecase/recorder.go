package usecase

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ponyo877/replicator/server/domain"
)

const drainTimeout = 2 * time.Second

// Recorder writes session history in the background. Record never blocks:
// when the queue is full the event is dropped and counted.
type Recorder struct {
	repo    Repository
	events  chan domain.StreamEvent
	logger  *slog.Logger
	dropped atomic.Int64
}

func NewRecorder(repo Repository, size int, logger *slog.Logger) *Recorder {
	if size < 1 {
		size = 256
	}
	return &Recorder{
		repo:   repo,
		events: make(chan domain.StreamEvent, size),
		logger: logger,
	}
}

func (r *Recorder) Record(event domain.StreamEvent) bool {
	if r == nil || r.repo == nil {
		return false
	}
	select {
	case r.events <- event:
		return true
	default:
		r.dropped.Add(1)
		return false
	}
}

func (r *Recorder) Dropped() int64 {
	if r == nil {
		return 0
	}
	return r.dropped.Load()
}

// Run persists queued events until ctx is done, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) {
	if r == nil || r.repo == nil {
		return
	}
	for {
		select {
		case event := <-r.events:
			r.save(ctx, event)
		case <-ctx.Done():
			r.drain()
			return
		}
	}
}

func (r *Recorder) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case event := <-r.events:
			r.save(ctx, event)
		default:
			return
		}
	}
}

func (r *Recorder) save(ctx context.Context, event domain.StreamEvent) {
	if err := r.repo.CreateEvent(ctx, event); err != nil {
		r.logger.Warn("history.write_failed", "event", event.String(), "error", err)
	}
}
