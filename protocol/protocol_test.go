package protocol_test

import (
	"encoding/json"
	"testing"

	"github.com/ponyo877/replicator/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeClient(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
		check   func(t *testing.T, m protocol.ClientMessage)
	}{
		{
			name:  "pose with left hand only",
			input: `{"cmd":"pose","pos":[1,2,3],"quat":[0,0,0,1],"posL":[4,5,6],"quatL":[0,1,0,0]}`,
			check: func(t *testing.T, m protocol.ClientMessage) {
				assert.Equal(t, protocol.CmdPose, m.Cmd)
				require.NotNil(t, m.Pos)
				assert.Equal(t, protocol.Vec3{1, 2, 3}, *m.Pos)
				left := m.Hand(protocol.Left)
				require.NotNil(t, left)
				assert.Equal(t, protocol.Vec3{4, 5, 6}, left.Pos)
				assert.Equal(t, protocol.Quat{0, 1, 0, 0}, left.Quat)
				assert.Nil(t, m.Hand(protocol.Right))
			},
		},
		{
			name:  "hand position without orientation falls back to identity",
			input: `{"cmd":"pose","pos":[0,0,0],"quat":[0,0,0,1],"posR":[1,1,1]}`,
			check: func(t *testing.T, m protocol.ClientMessage) {
				right := m.Hand(protocol.Right)
				require.NotNil(t, right)
				assert.Equal(t, protocol.IdentityQuat, right.Quat)
			},
		},
		{
			name:  "orientation without position is not a hand",
			input: `{"cmd":"pose","pos":[0,0,0],"quat":[0,0,0,1],"quatL":[0,0,0,1]}`,
			check: func(t *testing.T, m protocol.ClientMessage) {
				assert.Nil(t, m.Hand(protocol.Left))
			},
		},
		{
			name:  "unknown command still decodes",
			input: `{"cmd":"wave","speed":3}`,
			check: func(t *testing.T, m protocol.ClientMessage) {
				assert.Equal(t, protocol.Command("wave"), m.Cmd)
			},
		},
		{
			name:    "missing cmd",
			input:   `{"pos":[1,2,3]}`,
			wantErr: protocol.ErrMissingCommand,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := protocol.DecodeClient([]byte(tt.input))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, m)
		})
	}

	t.Run("garbage", func(t *testing.T) {
		_, err := protocol.DecodeClient([]byte("not json"))
		assert.Error(t, err)
	})
}

func TestUser_Passthrough(t *testing.T) {
	in := `{"avatar":"fox","name":"Ada","rgb":6591981,"score":[1,2]}`

	var u protocol.User
	require.NoError(t, json.Unmarshal([]byte(in), &u))
	assert.Equal(t, "Ada", u.Name)
	v, ok := u.RGB.Value()
	require.True(t, ok)
	assert.Equal(t, uint32(0x6495ED), v)
	assert.Contains(t, u.Extra, "avatar")
	assert.Contains(t, u.Extra, "score")

	out, err := json.Marshal(u)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestUser_NonObjectRelayedAsSent(t *testing.T) {
	for _, in := range []string{`"bob"`, `42`, `["a","b"]`, `true`} {
		t.Run(in, func(t *testing.T) {
			m, err := protocol.DecodeClient([]byte(`{"cmd":"user","user":` + in + `}`))
			require.NoError(t, err)
			require.NotNil(t, m.User)
			assert.Equal(t, "", m.User.Name)
			assert.True(t, m.User.RGB.IsZero())
			assert.False(t, m.User.IsZero())

			out, err := json.Marshal(m.User)
			require.NoError(t, err)
			assert.JSONEq(t, in, string(out))
		})
	}
}

func TestUser_EmptyStaysEmpty(t *testing.T) {
	var u protocol.User
	require.NoError(t, json.Unmarshal([]byte(`{}`), &u))
	assert.True(t, u.IsZero())

	out, err := json.Marshal(u)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(out))
}

func TestColour(t *testing.T) {
	tests := []struct {
		input string
		want  uint32
	}{
		{"#6495ed", 0x6495ED},
		{"0x0DDB0B", 0x0DDB0B},
		{"ff00aa", 0xFF00AA},
		{"255", 255},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			c, err := protocol.ParseColour(tt.input)
			require.NoError(t, err)
			v, ok := c.Value()
			require.True(t, ok)
			assert.Equal(t, tt.want, v)
		})
	}

	t.Run("string colour from the wire", func(t *testing.T) {
		var u protocol.User
		require.NoError(t, json.Unmarshal([]byte(`{"rgb":"#0ddb0b"}`), &u))
		assert.Equal(t, "#0ddb0b", u.RGB.String())
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := protocol.ParseColour("#1000000")
		assert.Error(t, err)
	})
}

func TestEncodeOthers(t *testing.T) {
	a := protocol.NewShared("a")
	a.Pos = protocol.Vec3{1, 2, 3}
	a.SetHand(protocol.Left, &protocol.HandPose{Pos: protocol.Vec3{9, 9, 9}, Quat: protocol.IdentityQuat})

	frame, err := protocol.EncodeOthers([]protocol.Shared{a})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(frame, &raw))
	assert.Equal(t, "others", raw["cmd"])
	others := raw["others"].([]any)
	require.Len(t, others, 1)
	entry := others[0].(map[string]any)
	assert.Equal(t, "a", entry["id"])
	assert.Contains(t, entry, "posL")
	assert.Contains(t, entry, "quatL")
	assert.NotContains(t, entry, "posR")
	assert.NotContains(t, entry, "quatR")

	msg, err := protocol.DecodeServer(frame)
	require.NoError(t, err)
	require.Len(t, msg.Others, 1)
	require.NotNil(t, msg.Others[0].Left)
	assert.Nil(t, msg.Others[0].Right)
}

func TestEncodeOthers_EmptyArray(t *testing.T) {
	frame, err := protocol.EncodeOthers(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"cmd":"others","others":[]}`, string(frame))
}

func TestNewPoseMessage(t *testing.T) {
	s := protocol.NewShared("me")
	s.Pos = protocol.Vec3{1, 1, 1}

	frame, err := protocol.NewPoseMessage(s).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"cmd":"pose","pos":[1,1,1],"quat":[0,0,0,1]}`, string(frame))

	s.SetHand(protocol.Right, &protocol.HandPose{Pos: protocol.Vec3{2, 2, 2}, Quat: protocol.IdentityQuat})
	frame, err = protocol.NewPoseMessage(s).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"cmd":"pose","pos":[1,1,1],"quat":[0,0,0,1],"posR":[2,2,2],"quatR":[0,0,0,1]}`, string(frame))
}
