package adaptor_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ponyo877/replicator/protocol"
	"github.com/ponyo877/replicator/server/adaptor"
	"github.com/ponyo877/replicator/server/domain"
	"github.com/ponyo877/replicator/server/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	sm domain.StreamManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := domain.NewConfig()

	sm := domain.NewStreamManager()
	relay := usecase.NewRelayUsecase(sm, nil, logger)
	uc := usecase.NewUsecase(nil, sm)
	broadcaster := usecase.NewBroadcaster(sm, 10*time.Millisecond, nil, logger)
	metrics := adaptor.NewMetrics(uc, broadcaster.Ticks)

	ctx, cancel := context.WithCancel(context.Background())
	go broadcaster.Run(ctx)

	ws := adaptor.NewAdaptor(relay, cfg, logger)
	srv := httptest.NewServer(adaptor.NewRouter(ws, uc, metrics.Handler(), nil, logger))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &testServer{Server: srv, sm: sm}
}

func (s *testServer) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) protocol.ServerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := protocol.DecodeServer(data)
	require.NoError(t, err)
	return msg
}

// awaitOthers reads snapshots until one satisfies ok.
func awaitOthers(t *testing.T, conn *websocket.Conn, ok func([]protocol.Shared) bool) []protocol.Shared {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		msg := readMessage(t, conn)
		if msg.Cmd == protocol.CmdOthers && ok(msg.Others) {
			return msg.Others
		}
	}
	t.Fatal("condition not met before deadline")
	return nil
}

func handshake(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	msg := readMessage(t, conn)
	require.Equal(t, protocol.CmdHandshake, msg.Cmd)
	require.NotEmpty(t, msg.ID)
	return msg.ID
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func find(others []protocol.Shared, id string) (protocol.Shared, bool) {
	for _, o := range others {
		if o.ID == id {
			return o, true
		}
	}
	return protocol.Shared{}, false
}

func TestServeWS_HandshakeThenSnapshot(t *testing.T) {
	srv := newTestServer(t)
	conn := srv.dial(t, "/solo")

	id := handshake(t, conn)
	others := awaitOthers(t, conn, func(o []protocol.Shared) bool { return len(o) == 1 })
	assert.Equal(t, id, others[0].ID)
	assert.Equal(t, protocol.IdentityQuat, others[0].Quat)
	assert.True(t, others[0].User.IsZero())
}

func TestServeWS_TrailingSlashSharesRoom(t *testing.T) {
	srv := newTestServer(t)
	a := srv.dial(t, "/lobby")
	b := srv.dial(t, "/lobby/")
	idA := handshake(t, a)
	handshake(t, b)

	send(t, a, `{"cmd":"user","user":{"name":"Ada","rgb":6591981}}`)
	send(t, a, `{"cmd":"pose","pos":[1,2,3],"quat":[0,0,0,1]}`)

	others := awaitOthers(t, b, func(o []protocol.Shared) bool {
		s, ok := find(o, idA)
		return len(o) == 2 && ok && s.Pos == protocol.Vec3{1, 2, 3}
	})
	s, _ := find(others, idA)
	assert.Equal(t, "Ada", s.User.Name)
	assert.Equal(t, []domain.RoomPath{"/lobby"}, srv.sm.GetActiveRooms())
}

func TestServeWS_SlashVariantsNormalize(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"//lobby///", "/"} {
		conn := srv.dial(t, path)
		handshake(t, conn)
	}
	assert.Equal(t, []domain.RoomPath{"/lobby", "default"}, srv.sm.GetActiveRooms())
}

func TestServeWS_HandAppearsAndDisappears(t *testing.T) {
	srv := newTestServer(t)
	a := srv.dial(t, "/hands")
	watcher := srv.dial(t, "/hands")
	idA := handshake(t, a)
	handshake(t, watcher)

	send(t, a, `{"cmd":"pose","pos":[0,0,0],"quat":[0,0,0,1],"posL":[1,1,1],"quatL":[0,0,0,1]}`)
	awaitOthers(t, watcher, func(o []protocol.Shared) bool {
		s, ok := find(o, idA)
		return ok && s.Left != nil && s.Right == nil
	})

	send(t, a, `{"cmd":"pose","pos":[0,0,0],"quat":[0,0,0,1]}`)
	awaitOthers(t, watcher, func(o []protocol.Shared) bool {
		s, ok := find(o, idA)
		return ok && s.Left == nil
	})
}

func TestServeWS_DepartedClientExcluded(t *testing.T) {
	srv := newTestServer(t)
	a := srv.dial(t, "/r")
	b := srv.dial(t, "/r")
	idA := handshake(t, a)
	idB := handshake(t, b)

	awaitOthers(t, b, func(o []protocol.Shared) bool { return len(o) == 2 })
	require.NoError(t, a.Close())

	others := awaitOthers(t, b, func(o []protocol.Shared) bool {
		_, ok := find(o, idA)
		return !ok
	})
	require.Len(t, others, 1)
	assert.Equal(t, idB, others[0].ID)
}

func TestServeWS_MalformedFrameKeepsConnection(t *testing.T) {
	srv := newTestServer(t)
	conn := srv.dial(t, "/r")
	id := handshake(t, conn)

	send(t, conn, `{{{`)
	send(t, conn, `{"pos":[1,1,1]}`)
	send(t, conn, `{"cmd":"wave"}`)
	send(t, conn, `{"cmd":"pose","pos":[5,5,5],"quat":[0,0,0,1]}`)

	awaitOthers(t, conn, func(o []protocol.Shared) bool {
		s, ok := find(o, id)
		return ok && s.Pos == protocol.Vec3{5, 5, 5}
	})
}

func TestRouter_AdminEndpoints(t *testing.T) {
	srv := newTestServer(t)
	conn := srv.dial(t, "/lobby")
	id := handshake(t, conn)
	send(t, conn, `{"cmd":"user","user":{"name":"Ada"}}`)
	awaitOthers(t, conn, func(o []protocol.Shared) bool { return len(o) == 1 && o[0].User.Name == "Ada" })

	resp, err := http.Get(srv.URL + "/admin/rooms")
	require.NoError(t, err)
	var rooms struct {
		Rooms []domain.Room `json:"rooms"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rooms))
	resp.Body.Close()
	require.Len(t, rooms.Rooms, 1)
	assert.Equal(t, domain.RoomPath("/lobby"), rooms.Rooms[0].Path)
	assert.Equal(t, 1, rooms.Rooms[0].Members)

	resp, err = http.Get(srv.URL + "/admin/rooms/members?room=/lobby/")
	require.NoError(t, err)
	var members struct {
		Members []domain.Member `json:"members"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&members))
	resp.Body.Close()
	require.Len(t, members.Members, 1)
	assert.Equal(t, id, members.Members[0].ID)
	assert.Equal(t, "Ada", members.Members[0].Name)

	resp, err = http.Get(srv.URL + "/admin/rooms/members?room=/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/admin/sessions/history?room=/lobby")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/admin/rooms/reload?room=/lobby", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if msg := readMessage(t, conn); msg.Cmd == protocol.CmdReload {
			return
		}
	}
	t.Fatal("reload not delivered")
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "replicator_active_sessions")
	assert.Contains(t, string(body), "replicator_ticks_total")

	resp, err = http.Get(srv.URL + "/lobby")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "plain GETs are not upgraded")
}
