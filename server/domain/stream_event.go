package domain

import "time"

type StreamEventType int

const (
	EventJoin StreamEventType = iota
	EventLeave
)

func (t StreamEventType) String() string {
	switch t {
	case EventJoin:
		return "join"
	case EventLeave:
		return "leave"
	default:
		return "unknown"
	}
}

func ParseStreamEventType(s string) StreamEventType {
	switch s {
	case "join":
		return EventJoin
	case "leave":
		return EventLeave
	default:
		return -1
	}
}

// StreamEvent is one entry of the session history.
type StreamEvent struct {
	ID        string
	Type      StreamEventType
	SessionID string
	RoomPath  RoomPath
	Name      string
	Remote    string
	Timestamp time.Time
}

func NewJoinEvent(s *Session) StreamEvent {
	return StreamEvent{
		Type:      EventJoin,
		SessionID: s.ID,
		RoomPath:  s.RoomPath,
		Remote:    s.Remote,
		Timestamp: s.JoinedAt,
	}
}

func NewLeaveEvent(s *Session) StreamEvent {
	return StreamEvent{
		Type:      EventLeave,
		SessionID: s.ID,
		RoomPath:  s.RoomPath,
		Name:      s.DisplayName(),
		Remote:    s.Remote,
		Timestamp: time.Now(),
	}
}

func (e StreamEvent) IsValid() bool {
	switch e.Type {
	case EventJoin, EventLeave:
		return e.SessionID != "" && e.RoomPath != ""
	default:
		return false
	}
}

func (e StreamEvent) String() string {
	return e.Type.String() + ": " + e.SessionID + " " + e.RoomPath.String()
}
