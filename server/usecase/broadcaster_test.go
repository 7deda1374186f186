package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/ponyo877/replicator/protocol"
	"github.com/ponyo877/replicator/server/domain"
	"github.com/ponyo877/replicator/server/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_SingleMemberGetsItself(t *testing.T) {
	sm := domain.NewStreamManager()
	relay := usecase.NewRelayUsecase(sm, nil, testLogger)
	b := usecase.NewBroadcaster(sm, time.Hour, nil, testLogger)

	s, err := relay.Connect("/solo", "")
	require.NoError(t, err)
	drain(t, s)

	b.Tick()
	msgs := drain(t, s)
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Others, 1)
	assert.Equal(t, s.ID, msgs[0].Others[0].ID)
}

func TestBroadcaster_SameRoomAcrossTrailingSlash(t *testing.T) {
	sm := domain.NewStreamManager()
	relay := usecase.NewRelayUsecase(sm, nil, testLogger)
	b := usecase.NewBroadcaster(sm, time.Hour, nil, testLogger)

	a, err := relay.Connect(domain.NewRoomPath("/lobby"), "")
	require.NoError(t, err)
	c, err := relay.Connect(domain.NewRoomPath("/lobby/"), "")
	require.NoError(t, err)
	drain(t, a)
	drain(t, c)

	relay.HandleMessage(a, []byte(`{"cmd":"pose","pos":[1,2,3],"quat":[0,0,0,1]}`))
	b.Tick()

	for _, s := range []*domain.Session{a, c} {
		msgs := drain(t, s)
		require.Len(t, msgs, 1)
		others := msgs[0].Others
		require.Len(t, others, 2)
		assert.Equal(t, a.ID, others[0].ID)
		assert.Equal(t, protocol.Vec3{1, 2, 3}, others[0].Pos)
		assert.Equal(t, c.ID, others[1].ID)
	}
}

func TestBroadcaster_HandAppearsAndDisappears(t *testing.T) {
	sm := domain.NewStreamManager()
	relay := usecase.NewRelayUsecase(sm, nil, testLogger)
	b := usecase.NewBroadcaster(sm, time.Hour, nil, testLogger)

	a, err := relay.Connect("/hands", "")
	require.NoError(t, err)
	watcher, err := relay.Connect("/hands", "")
	require.NoError(t, err)
	drain(t, a)
	drain(t, watcher)

	relay.HandleMessage(a, []byte(`{"cmd":"pose","pos":[0,0,0],"quat":[0,0,0,1],"posL":[1,1,1],"quatL":[0,1,0,0]}`))
	b.Tick()
	msgs := drain(t, watcher)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].Others[0].Left)
	assert.Equal(t, protocol.Quat{0, 1, 0, 0}, msgs[0].Others[0].Left.Quat)

	relay.HandleMessage(a, []byte(`{"cmd":"pose","pos":[0,0,0],"quat":[0,0,0,1]}`))
	b.Tick()
	msgs = drain(t, watcher)
	require.Len(t, msgs, 1)
	assert.Nil(t, msgs[0].Others[0].Left)
}

func TestBroadcaster_DepartedClientExcluded(t *testing.T) {
	sm := domain.NewStreamManager()
	relay := usecase.NewRelayUsecase(sm, nil, testLogger)
	b := usecase.NewBroadcaster(sm, time.Hour, nil, testLogger)

	a, err := relay.Connect("/r", "")
	require.NoError(t, err)
	c, err := relay.Connect("/r", "")
	require.NoError(t, err)
	drain(t, c)

	relay.Disconnect(a, nil)
	b.Tick()

	msgs := drain(t, c)
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Others, 1)
	assert.Equal(t, c.ID, msgs[0].Others[0].ID)
}

func TestBroadcaster_RoomsAreIsolatedAndMirrored(t *testing.T) {
	sm := domain.NewStreamManager()
	relay := usecase.NewRelayUsecase(sm, nil, testLogger)
	mirror := &mirrorRecorder{}
	b := usecase.NewBroadcaster(sm, time.Hour, mirror, testLogger)

	a, err := relay.Connect("/a", "")
	require.NoError(t, err)
	c, err := relay.Connect("/b", "")
	require.NoError(t, err)
	drain(t, a)
	drain(t, c)

	b.Tick()

	msgsA := drain(t, a)
	require.Len(t, msgsA, 1)
	require.Len(t, msgsA[0].Others, 1)
	assert.Equal(t, a.ID, msgsA[0].Others[0].ID)

	mirror.mu.Lock()
	defer mirror.mu.Unlock()
	assert.Len(t, mirror.frames, 2)
	assert.Contains(t, string(mirror.frames["/b"]), c.ID)
	assert.EqualValues(t, 1, b.Ticks())
}

func TestBroadcaster_SkipsConnectingSessions(t *testing.T) {
	sm := domain.NewStreamManager()
	b := usecase.NewBroadcaster(sm, time.Hour, nil, testLogger)

	pending := sm.JoinRoom("/r", "")
	b.Tick()

	assert.Empty(t, drain(t, pending))
	assert.EqualValues(t, 0, sm.GetStats().TotalBroadcasts)
}

func TestBroadcaster_Run(t *testing.T) {
	sm := domain.NewStreamManager()
	relay := usecase.NewRelayUsecase(sm, nil, testLogger)
	b := usecase.NewBroadcaster(sm, 5*time.Millisecond, nil, testLogger)

	s, err := relay.Connect("/r", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	select {
	case <-s.Outbound(): // handshake
	case <-time.After(time.Second):
		t.Fatal("no handshake")
	}
	select {
	case frame := <-s.Outbound():
		msg, err := protocol.DecodeServer(frame)
		require.NoError(t, err)
		assert.Equal(t, protocol.CmdOthers, msg.Cmd)
	case <-time.After(time.Second):
		t.Fatal("no snapshot")
	}

	cancel()
	<-done
}
