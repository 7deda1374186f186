package domain

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const defaultSendBuffer = 16

type streamManagerImpl struct {
	mu        sync.RWMutex
	rooms     map[RoomPath]*roomImpl
	sessions  map[string]*Session
	newID     func() string
	sendBuf   int
	startTime time.Time

	totalSessions   atomic.Int64
	totalMessages   atomic.Int64
	totalBroadcasts atomic.Int64
	framesSent      atomic.Int64
	framesDropped   atomic.Int64
}

// roomImpl keeps members in join order so every snapshot of a room lists
// clients the same way.
type roomImpl struct {
	path    RoomPath
	clients map[string]*Session
	order   []*Session
}

type Option func(*streamManagerImpl)

// WithIDGenerator replaces the UUID v4 generator.
func WithIDGenerator(fn func() string) Option {
	return func(sm *streamManagerImpl) { sm.newID = fn }
}

// WithSendBuffer sets the outbound queue length of new sessions.
func WithSendBuffer(n int) Option {
	return func(sm *streamManagerImpl) { sm.sendBuf = n }
}

func NewStreamManager(opts ...Option) StreamManager {
	sm := &streamManagerImpl{
		rooms:     make(map[RoomPath]*roomImpl),
		sessions:  make(map[string]*Session),
		newID:     uuid.NewString,
		sendBuf:   defaultSendBuffer,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(sm)
	}
	return sm
}

func newRoom(path RoomPath) *roomImpl {
	return &roomImpl{
		path:    path,
		clients: make(map[string]*Session),
	}
}

func (r *roomImpl) add(s *Session) {
	r.clients[s.ID] = s
	r.order = append(r.order, s)
}

func (r *roomImpl) remove(id string) {
	delete(r.clients, id)
	r.order = slices.DeleteFunc(r.order, func(s *Session) bool { return s.ID == id })
}

func (r *roomImpl) members() []*Session {
	return slices.Clone(r.order)
}

// getOrCreate must be called with sm.mu held for writing.
func (sm *streamManagerImpl) getOrCreate(path RoomPath) *roomImpl {
	room, exists := sm.rooms[path]
	if !exists {
		room = newRoom(path)
		sm.rooms[path] = room
	}
	return room
}

// uniqueID must be called with sm.mu held for writing.
func (sm *streamManagerImpl) uniqueID() string {
	for {
		id := sm.newID()
		if id == "" {
			continue
		}
		if _, taken := sm.sessions[id]; !taken {
			return id
		}
	}
}

func (sm *streamManagerImpl) JoinRoom(roomPath RoomPath, remote string) *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session := NewStreamSession(sm.uniqueID(), roomPath, remote, sm.sendBuf)
	sm.sessions[session.ID] = session
	sm.getOrCreate(roomPath).add(session)
	sm.totalSessions.Add(1)

	return session
}

func (sm *streamManagerImpl) LeaveRoom(sessionID string) (*Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return nil, fmt.Errorf("leave %s: %w", sessionID, ErrSessionNotFound)
	}

	// the session carries the normalized name it joined with, so removal
	// always finds the same room
	if room, roomExists := sm.rooms[session.RoomPath]; roomExists {
		room.remove(sessionID)
		if len(room.clients) == 0 {
			delete(sm.rooms, session.RoomPath)
		}
	}
	delete(sm.sessions, sessionID)

	return session, nil
}

func (sm *streamManagerImpl) GetActiveClients(roomPath RoomPath) []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	room, exists := sm.rooms[roomPath]
	if !exists {
		return []*Session{}
	}
	return room.members()
}

func (sm *streamManagerImpl) GetSession(sessionID string) (*Session, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[sessionID]
	return session, exists
}

func (sm *streamManagerImpl) IsRoomActive(roomPath RoomPath) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	_, exists := sm.rooms[roomPath]
	return exists
}

func (sm *streamManagerImpl) GetActiveRooms() []RoomPath {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	rooms := make([]RoomPath, 0, len(sm.rooms))
	for roomPath := range sm.rooms {
		rooms = append(rooms, roomPath)
	}
	slices.Sort(rooms)
	return rooms
}

func (sm *streamManagerImpl) GetRoomClientCount(roomPath RoomPath) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	room, exists := sm.rooms[roomPath]
	if !exists {
		return 0
	}
	return len(room.clients)
}

func (sm *streamManagerImpl) EachRoom(fn func(roomPath RoomPath, members []*Session)) {
	sm.mu.RLock()
	rooms := make(map[RoomPath][]*Session, len(sm.rooms))
	for path, room := range sm.rooms {
		rooms[path] = room.members()
	}
	sm.mu.RUnlock()

	for path, members := range rooms {
		fn(path, members)
	}
}

func (sm *streamManagerImpl) SendToSession(sessionID string, frame []byte) error {
	session, exists := sm.GetSession(sessionID)
	if !exists {
		return fmt.Errorf("send to %s: %w", sessionID, ErrSessionNotFound)
	}
	if !session.Enqueue(frame) {
		sm.framesDropped.Add(1)
		return fmt.Errorf("send to %s: outbound queue full", sessionID)
	}
	sm.framesSent.Add(1)
	return nil
}

func (sm *streamManagerImpl) BroadcastToRoom(roomPath RoomPath, frame []byte) (int, error) {
	sm.mu.RLock()
	room, exists := sm.rooms[roomPath]
	var members []*Session
	if exists {
		members = room.members()
	}
	sm.mu.RUnlock()

	if !exists {
		return 0, fmt.Errorf("broadcast to %s: %w", roomPath, ErrRoomNotFound)
	}

	sent, dropped := 0, 0
	for _, session := range members {
		if session.Enqueue(frame) {
			sent++
		} else {
			dropped++
		}
	}
	sm.CountBroadcast(sent, dropped)
	return sent, nil
}

func (sm *streamManagerImpl) CountMessage() {
	sm.totalMessages.Add(1)
}

func (sm *streamManagerImpl) CountBroadcast(sent, dropped int) {
	sm.totalBroadcasts.Add(1)
	sm.framesSent.Add(int64(sent))
	sm.framesDropped.Add(int64(dropped))
}

// Cleanup empties the registry and returns the sessions it held so the
// caller can close their connections.
func (sm *streamManagerImpl) Cleanup() []*Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sessions := make([]*Session, 0, len(sm.sessions))
	for _, session := range sm.sessions {
		sessions = append(sessions, session)
	}

	sm.rooms = make(map[RoomPath]*roomImpl)
	sm.sessions = make(map[string]*Session)

	return sessions
}

func (sm *streamManagerImpl) GetStats() StreamStats {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return StreamStats{
		ActiveRooms:     len(sm.rooms),
		ActiveSessions:  len(sm.sessions),
		TotalSessions:   sm.totalSessions.Load(),
		TotalMessages:   sm.totalMessages.Load(),
		TotalBroadcasts: sm.totalBroadcasts.Load(),
		FramesSent:      sm.framesSent.Load(),
		FramesDropped:   sm.framesDropped.Load(),
		Uptime:          time.Since(sm.startTime).String(),
	}
}
