package domain

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrRoomNotFound    = errors.New("room not found")
	ErrHistoryDisabled = errors.New("session history is disabled")
)

type RoomService interface {
	// JoinRoom allocates a unique session id and registers the new session
	// in the global set and in its room, creating the room if needed.
	JoinRoom(roomPath RoomPath, remote string) *Session
	// LeaveRoom removes the session from its room and the global set.
	// A second call for the same id returns ErrSessionNotFound.
	LeaveRoom(sessionID string) (*Session, error)

	GetActiveClients(roomPath RoomPath) []*Session
	GetSession(sessionID string) (*Session, bool)

	IsRoomActive(roomPath RoomPath) bool
	GetActiveRooms() []RoomPath

	GetRoomClientCount(roomPath RoomPath) int
}

type MessageBroadcaster interface {
	// EachRoom calls fn once per room with members in join order. The
	// member slice is a copy taken under the registry lock.
	EachRoom(fn func(roomPath RoomPath, members []*Session))

	SendToSession(sessionID string, frame []byte) error
	BroadcastToRoom(roomPath RoomPath, frame []byte) (sent int, err error)
}

type StreamManager interface {
	RoomService
	MessageBroadcaster

	CountMessage()
	CountBroadcast(sent, dropped int)

	Cleanup() []*Session
	GetStats() StreamStats
}

type StreamStats struct {
	ActiveRooms     int    `json:"active_rooms"`
	ActiveSessions  int    `json:"active_sessions"`
	TotalSessions   int64  `json:"total_sessions"`
	TotalMessages   int64  `json:"total_messages"`
	TotalBroadcasts int64  `json:"total_broadcasts"`
	FramesSent      int64  `json:"frames_sent"`
	FramesDropped   int64  `json:"frames_dropped"`
	Uptime          string `json:"uptime"`
}
