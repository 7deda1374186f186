package protocol

import "encoding/json"

// Vec3 is a position in world space.
type Vec3 [3]float64

// Quat is an orientation as a unit quaternion in x, y, z, w order.
type Quat [4]float64

var IdentityQuat = Quat{0, 0, 0, 1}

type Hand int

const (
	Left Hand = iota
	Right
)

func (h Hand) String() string {
	switch h {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// HandPose is a tracked controller. A hand is either fully present
// (position and orientation) or nil.
type HandPose struct {
	Pos  Vec3
	Quat Quat
}

// Shared is the replicated part of a client: what the server keeps per
// session and what every member of a room receives each tick.
type Shared struct {
	ID    string
	Pos   Vec3
	Quat  Quat
	User  User
	Left  *HandPose
	Right *HandPose
}

func NewShared(id string) Shared {
	return Shared{
		ID:   id,
		Quat: IdentityQuat,
	}
}

func (s Shared) Hand(h Hand) *HandPose {
	if h == Left {
		return s.Left
	}
	return s.Right
}

func (s *Shared) SetHand(h Hand, p *HandPose) {
	if p != nil {
		cp := *p
		p = &cp
	}
	if h == Left {
		s.Left = p
	} else {
		s.Right = p
	}
}

// Clone returns a copy that shares no hand pointers with s.
func (s Shared) Clone() Shared {
	out := s
	out.SetHand(Left, s.Left)
	out.SetHand(Right, s.Right)
	return out
}

type sharedJSON struct {
	ID    string `json:"id"`
	Pos   Vec3   `json:"pos"`
	Quat  Quat   `json:"quat"`
	User  User   `json:"user"`
	PosL  *Vec3  `json:"posL,omitempty"`
	QuatL *Quat  `json:"quatL,omitempty"`
	PosR  *Vec3  `json:"posR,omitempty"`
	QuatR *Quat  `json:"quatR,omitempty"`
}

func (s Shared) MarshalJSON() ([]byte, error) {
	out := sharedJSON{ID: s.ID, Pos: s.Pos, Quat: s.Quat, User: s.User}
	if s.Left != nil {
		out.PosL, out.QuatL = &s.Left.Pos, &s.Left.Quat
	}
	if s.Right != nil {
		out.PosR, out.QuatR = &s.Right.Pos, &s.Right.Quat
	}
	return json.Marshal(out)
}

func (s *Shared) UnmarshalJSON(data []byte) error {
	var in sharedJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = Shared{
		ID:    in.ID,
		Pos:   in.Pos,
		Quat:  in.Quat,
		User:  in.User,
		Left:  handFrom(in.PosL, in.QuatL),
		Right: handFrom(in.PosR, in.QuatR),
	}
	return nil
}

// handFrom pairs a position with its orientation. The position decides
// presence; a missing orientation falls back to identity.
func handFrom(pos *Vec3, quat *Quat) *HandPose {
	if pos == nil {
		return nil
	}
	p := &HandPose{Pos: *pos, Quat: IdentityQuat}
	if quat != nil {
		p.Quat = *quat
	}
	return p
}
