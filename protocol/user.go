package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// User is the free-form public metadata of a client. Name and RGB are the
// documented fields; anything else the client sends is kept in Extra and
// relayed untouched. A record that is not a JSON object is relayed as sent
// and leaves Name and RGB empty.
type User struct {
	Name  string
	RGB   Colour
	Extra map[string]json.RawMessage

	raw json.RawMessage
}

func NewUser(name string, rgb Colour) User {
	return User{Name: name, RGB: rgb}
}

func (u User) IsZero() bool {
	return u.Name == "" && u.RGB.IsZero() && len(u.Extra) == 0 && len(u.raw) == 0
}

func (u User) MarshalJSON() ([]byte, error) {
	if len(u.raw) > 0 {
		return u.raw, nil
	}
	fields := make(map[string]json.RawMessage, len(u.Extra)+2)
	for k, v := range u.Extra {
		fields[k] = v
	}
	if u.Name != "" {
		name, err := json.Marshal(u.Name)
		if err != nil {
			return nil, err
		}
		fields["name"] = name
	}
	if !u.RGB.IsZero() {
		fields["rgb"] = json.RawMessage(u.RGB.raw)
	}
	return json.Marshal(fields)
}

func (u *User) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*u = User{}
		return nil
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] != '{' {
		*u = User{raw: append(json.RawMessage(nil), trimmed...)}
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("user: %w", err)
	}
	out := User{}
	if raw, ok := fields["name"]; ok {
		// a non-string name is not ours to interpret; pass it through
		if err := json.Unmarshal(raw, &out.Name); err == nil {
			delete(fields, "name")
		}
	}
	if raw, ok := fields["rgb"]; ok {
		out.RGB = Colour{raw: append([]byte(nil), raw...)}
		delete(fields, "rgb")
	}
	if len(fields) > 0 {
		out.Extra = fields
	}
	*u = out
	return nil
}

// Colour keeps the rgb value exactly as the client encoded it (browsers
// send a number such as 0x6495ED, some clients send a hex string).
type Colour struct {
	raw []byte
}

func NewColour(rgb uint32) Colour {
	return Colour{raw: []byte(strconv.FormatUint(uint64(rgb&0xFFFFFF), 10))}
}

// ParseColour accepts "#rrggbb", "0xrrggbb", "rrggbb" or a decimal number.
func ParseColour(s string) (Colour, error) {
	v, err := parseRGB(s)
	if err != nil {
		return Colour{}, err
	}
	return NewColour(v), nil
}

func (c Colour) IsZero() bool { return len(c.raw) == 0 }

// Value decodes the colour as a 24-bit RGB integer.
func (c Colour) Value() (uint32, bool) {
	if c.IsZero() {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(c.raw, &n); err == nil {
		if n < 0 || n > 0xFFFFFF {
			return 0, false
		}
		return uint32(n), true
	}
	var s string
	if err := json.Unmarshal(c.raw, &s); err != nil {
		return 0, false
	}
	v, err := parseRGB(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (c Colour) String() string {
	if v, ok := c.Value(); ok {
		return fmt.Sprintf("#%06x", v)
	}
	return string(c.raw)
}

func (c Colour) MarshalJSON() ([]byte, error) {
	if c.IsZero() {
		return []byte("null"), nil
	}
	return c.raw, nil
}

func (c *Colour) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		c.raw = nil
		return nil
	}
	c.raw = append([]byte(nil), data...)
	return nil
}

func parseRGB(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	base := 10
	switch {
	case strings.HasPrefix(s, "#"):
		s, base = s[1:], 16
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		s, base = s[2:], 16
	case len(s) == 6 && strings.IndexFunc(s, isHexLetter) >= 0:
		base = 16
	}
	v, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	if v > 0xFFFFFF {
		return 0, fmt.Errorf("colour %q out of range", s)
	}
	return uint32(v), nil
}

func isHexLetter(r rune) bool {
	return (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
