package client

import (
	"slices"
	"sync"

	"github.com/ponyo877/replicator/protocol"
)

// World is the local view of a room: the state this client publishes and
// the latest snapshot of everybody else.
type World struct {
	mu     sync.RWMutex
	self   protocol.Shared
	others []protocol.Shared
}

func NewWorld(user protocol.User) *World {
	self := protocol.NewShared("")
	self.User = user
	return &World{self: self, others: []protocol.Shared{}}
}

func (w *World) Self() protocol.Shared {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.self.Clone()
}

func (w *World) ID() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.self.ID
}

// Ready reports whether the server has assigned an id.
func (w *World) Ready() bool {
	return w.ID() != ""
}

func (w *World) SetID(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.self.ID = id
}

func (w *World) SetPose(pos protocol.Vec3, quat protocol.Quat) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.self.Pos = pos
	w.self.Quat = quat
}

// SetHand starts tracking h, or stops when p is nil.
func (w *World) SetHand(h protocol.Hand, p *protocol.HandPose) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.self.SetHand(h, p)
}

func (w *World) SetUser(u protocol.User) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.self.User = u
}

func (w *World) User() protocol.User {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.self.User
}

func (w *World) Others() []protocol.Shared {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]protocol.Shared, len(w.others))
	for i, o := range w.others {
		out[i] = o.Clone()
	}
	return out
}

// ReplaceOthers swaps in a server snapshot. The server includes this
// client in its own snapshot, so the entry carrying our id is removed.
func (w *World) ReplaceOthers(others []protocol.Shared) {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.self.ID
	w.others = slices.DeleteFunc(slices.Clone(others), func(o protocol.Shared) bool {
		return id != "" && o.ID == id
	})
	if w.others == nil {
		w.others = []protocol.Shared{}
	}
}

// Reset forgets the server assigned id and the remote snapshot. The local
// pose and user record survive.
func (w *World) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.self.ID = ""
	w.others = []protocol.Shared{}
}
