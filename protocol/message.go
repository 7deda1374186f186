// Package protocol defines the JSON frames exchanged between relay clients
// and the relay server. Every frame is a single object with a "cmd" field
// that selects the payload shape.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Command string

const (
	// client -> server
	CmdUser Command = "user"
	CmdPose Command = "pose"

	// server -> client
	CmdHandshake Command = "handshake"
	CmdOthers    Command = "others"
	CmdReload    Command = "reload"
)

var ErrMissingCommand = errors.New("protocol: missing cmd")

// ClientMessage is a decoded client frame. Optional fields are nil when the
// client left them out, which is how hand presence is signalled.
type ClientMessage struct {
	Cmd   Command `json:"cmd"`
	User  *User   `json:"user,omitempty"`
	Pos   *Vec3   `json:"pos,omitempty"`
	Quat  *Quat   `json:"quat,omitempty"`
	PosL  *Vec3   `json:"posL,omitempty"`
	QuatL *Quat   `json:"quatL,omitempty"`
	PosR  *Vec3   `json:"posR,omitempty"`
	QuatR *Quat   `json:"quatR,omitempty"`
}

func NewUserMessage(u User) ClientMessage {
	return ClientMessage{Cmd: CmdUser, User: &u}
}

// NewPoseMessage builds a pose frame from the local shared state. Hands are
// only included when tracked.
func NewPoseMessage(s Shared) ClientMessage {
	pos, quat := s.Pos, s.Quat
	msg := ClientMessage{Cmd: CmdPose, Pos: &pos, Quat: &quat}
	if s.Left != nil {
		l := *s.Left
		msg.PosL, msg.QuatL = &l.Pos, &l.Quat
	}
	if s.Right != nil {
		r := *s.Right
		msg.PosR, msg.QuatR = &r.Pos, &r.Quat
	}
	return msg
}

// Hand returns the pair for h, or nil when the frame does not mention it.
func (m ClientMessage) Hand(h Hand) *HandPose {
	if h == Left {
		return handFrom(m.PosL, m.QuatL)
	}
	return handFrom(m.PosR, m.QuatR)
}

func DecodeClient(data []byte) (ClientMessage, error) {
	var m ClientMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return ClientMessage{}, fmt.Errorf("decode client frame: %w", err)
	}
	if m.Cmd == "" {
		return ClientMessage{}, ErrMissingCommand
	}
	return m, nil
}

func (m ClientMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// ServerMessage is a decoded server frame.
type ServerMessage struct {
	Cmd    Command  `json:"cmd"`
	ID     string   `json:"id,omitempty"`
	Others []Shared `json:"others,omitempty"`
}

func DecodeServer(data []byte) (ServerMessage, error) {
	var m ServerMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return ServerMessage{}, fmt.Errorf("decode server frame: %w", err)
	}
	if m.Cmd == "" {
		return ServerMessage{}, ErrMissingCommand
	}
	return m, nil
}

func EncodeHandshake(id string) ([]byte, error) {
	return json.Marshal(struct {
		Cmd Command `json:"cmd"`
		ID  string  `json:"id"`
	}{CmdHandshake, id})
}

// EncodeOthers serializes a room snapshot. The others array is always
// present, even when empty.
func EncodeOthers(others []Shared) ([]byte, error) {
	if others == nil {
		others = []Shared{}
	}
	return json.Marshal(struct {
		Cmd    Command  `json:"cmd"`
		Others []Shared `json:"others"`
	}{CmdOthers, others})
}

func EncodeReload() ([]byte, error) {
	return json.Marshal(struct {
		Cmd Command `json:"cmd"`
	}{CmdReload})
}
