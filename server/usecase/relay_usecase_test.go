package usecase_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ponyo877/replicator/protocol"
	"github.com/ponyo877/replicator/server/domain"
	"github.com/ponyo877/replicator/server/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelay_HandshakeComesFirst(t *testing.T) {
	sm := domain.NewStreamManager()
	relay := usecase.NewRelayUsecase(sm, nil, testLogger)
	b := usecase.NewBroadcaster(sm, time.Hour, nil, testLogger)

	s, err := relay.Connect("/lobby", "")
	require.NoError(t, err)
	assert.True(t, s.IsActive())
	b.Tick()

	msgs := drain(t, s)
	require.Len(t, msgs, 2)
	assert.Equal(t, protocol.CmdHandshake, msgs[0].Cmd)
	assert.Equal(t, s.ID, msgs[0].ID)
	assert.Equal(t, protocol.CmdOthers, msgs[1].Cmd)
}

func TestRelay_HandleMessage(t *testing.T) {
	sm := domain.NewStreamManager()
	relay := usecase.NewRelayUsecase(sm, nil, testLogger)
	s, err := relay.Connect("/lobby", "")
	require.NoError(t, err)

	relay.HandleMessage(s, []byte(`{"cmd":"pose","pos":[1,2,3],"quat":[0,0,0,1],"posL":[4,5,6]}`))
	relay.HandleMessage(s, []byte(`not json`))
	relay.HandleMessage(s, []byte(`{"pos":[9,9,9]}`))
	relay.HandleMessage(s, []byte(`{"cmd":"dance"}`))
	relay.HandleMessage(s, []byte(`{"cmd":"user","user":{"name":"Ada","hat":"top"}}`))

	snap := s.Snapshot()
	assert.Equal(t, protocol.Vec3{1, 2, 3}, snap.Pos)
	require.NotNil(t, snap.Left)
	assert.Equal(t, protocol.IdentityQuat, snap.Left.Quat)
	assert.Nil(t, snap.Right)
	assert.Equal(t, "Ada", snap.User.Name)
	assert.Contains(t, snap.User.Extra, "hat")

	// malformed frames are not counted
	assert.EqualValues(t, 3, sm.GetStats().TotalMessages)
	assert.True(t, s.IsActive())
}

func TestRelay_DisconnectIsIdempotent(t *testing.T) {
	sm := domain.NewStreamManager()
	relay := usecase.NewRelayUsecase(sm, nil, testLogger)
	s, err := relay.Connect("/lobby", "")
	require.NoError(t, err)

	relay.Disconnect(s, nil)
	relay.Disconnect(s, assert.AnError)

	assert.Equal(t, domain.SessionClosed, s.State())
	assert.False(t, sm.IsRoomActive("/lobby"))
	assert.Equal(t, 0, sm.GetStats().ActiveSessions)
}

func TestRelay_NonObjectUserIsKept(t *testing.T) {
	sm := domain.NewStreamManager()
	relay := usecase.NewRelayUsecase(sm, nil, testLogger)
	b := usecase.NewBroadcaster(sm, time.Hour, nil, testLogger)
	s, err := relay.Connect("/lobby", "")
	require.NoError(t, err)
	drain(t, s)

	relay.HandleMessage(s, []byte(`{"cmd":"user","user":"bob"}`))
	b.Tick()

	msgs := drain(t, s)
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Others, 1)
	out, err := json.Marshal(msgs[0].Others[0].User)
	require.NoError(t, err)
	assert.JSONEq(t, `"bob"`, string(out))
}
