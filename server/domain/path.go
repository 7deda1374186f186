package domain

import "strings"

// RoomPath is the normalized name of a room.
type RoomPath string

const DefaultRoom RoomPath = "default"

// NewRoomPath normalizes the path component of a connection URL:
// the trailing run of slashes is stripped, consecutive slashes collapse
// into one, and an empty result becomes DefaultRoom.
// "/lobby", "/lobby/" and "//lobby//" all name the same room.
func NewRoomPath(path string) RoomPath {
	path = strings.TrimRight(path, "/")
	if path == "" {
		return DefaultRoom
	}

	var b strings.Builder
	b.Grow(len(path))
	prevSlash := false
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '/' && prevSlash {
			continue
		}
		prevSlash = c == '/'
		b.WriteByte(c)
	}
	return RoomPath(b.String())
}

func (p RoomPath) String() string {
	return string(p)
}

func (p RoomPath) IsDefault() bool {
	return p == DefaultRoom
}
