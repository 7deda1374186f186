package domain

import "time"

type Room struct {
	Path    RoomPath  `json:"path"`
	Members int       `json:"members"`
	Since   time.Time `json:"since"`
}

func NewRoom(path RoomPath, members []*Session) Room {
	room := Room{Path: path, Members: len(members)}
	for _, m := range members {
		if room.Since.IsZero() || m.JoinedAt.Before(room.Since) {
			room.Since = m.JoinedAt
		}
	}
	return room
}

type Member struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Colour   string    `json:"colour,omitempty"`
	Remote   string    `json:"remote"`
	State    string    `json:"state"`
	JoinedAt time.Time `json:"joined_at"`
}

func NewMember(s *Session) Member {
	snap := s.Snapshot()
	m := Member{
		ID:       s.ID,
		Name:     snap.User.Name,
		Remote:   s.Remote,
		State:    s.State().String(),
		JoinedAt: s.JoinedAt,
	}
	if _, ok := snap.User.RGB.Value(); ok {
		m.Colour = snap.User.RGB.String()
	}
	return m
}
