package domain

import (
	"sync"
	"time"

	"github.com/ponyo877/replicator/protocol"
)

type SessionState int

const (
	SessionConnecting SessionState = iota
	SessionActive
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionConnecting:
		return "connecting"
	case SessionActive:
		return "active"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the server side of one connection. The shared record is only
// written by the connection's reader and read by the broadcaster through
// Snapshot.
type Session struct {
	ID       string
	RoomPath RoomPath
	Remote   string
	JoinedAt time.Time

	mu     sync.RWMutex
	state  SessionState
	shared protocol.Shared
	out    chan []byte
}

func NewStreamSession(id string, roomPath RoomPath, remote string, sendBuffer int) *Session {
	if sendBuffer < 1 {
		sendBuffer = 1
	}
	return &Session{
		ID:       id,
		RoomPath: roomPath,
		Remote:   remote,
		JoinedAt: time.Now(),
		state:    SessionConnecting,
		shared:   protocol.NewShared(id),
		out:      make(chan []byte, sendBuffer),
	}
}

func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) IsActive() bool {
	return s.State() == SessionActive
}

// Activate moves a connecting session to active. It reports false for any
// other starting state.
func (s *Session) Activate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionConnecting {
		return false
	}
	s.state = SessionActive
	return true
}

// Close marks the session closed and releases the outbound queue. Only the
// first call reports true.
func (s *Session) Close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SessionClosed {
		return false
	}
	s.state = SessionClosed
	close(s.out)
	return true
}

// Outbound yields frames queued for the connection writer. It is closed
// when the session closes.
func (s *Session) Outbound() <-chan []byte {
	return s.out
}

// Enqueue hands a frame to the connection writer without blocking. A full
// queue or a closed session drops the frame.
func (s *Session) Enqueue(frame []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == SessionClosed {
		return false
	}
	select {
	case s.out <- frame:
		return true
	default:
		return false
	}
}

// ApplyUser replaces the public metadata wholesale.
func (s *Session) ApplyUser(u *protocol.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u == nil {
		s.shared.User = protocol.User{}
		return
	}
	s.shared.User = *u
}

// ApplyPose overwrites the head transform and tracks each hand
// independently: a hand is present exactly when the latest pose carries it.
func (s *Session) ApplyPose(msg protocol.ClientMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.Pos != nil {
		s.shared.Pos = *msg.Pos
	}
	if msg.Quat != nil {
		s.shared.Quat = *msg.Quat
	}
	s.shared.SetHand(protocol.Left, msg.Hand(protocol.Left))
	s.shared.SetHand(protocol.Right, msg.Hand(protocol.Right))
}

func (s *Session) Snapshot() protocol.Shared {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shared.Clone()
}

func (s *Session) DisplayName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shared.User.Name
}

func (s *Session) String() string {
	return s.ID + "@" + s.RoomPath.String() + "(" + s.State().String() + ")"
}
