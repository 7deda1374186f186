// Package client keeps a local World in sync with a replicator room. A
// Manager owns the single websocket connection, reconnects after failures
// and publishes the local pose at a fixed rate once the server has assigned
// an id.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ponyo877/replicator/protocol"
)

var ErrAlreadyRunning = errors.New("client: manager already running")

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	DefaultURL    = "ws://localhost:3000"
	DefaultRoom   = "/"
	DefaultName   = "Anonymous"
	DefaultColour = 0x6495ED
)

type Options struct {
	URL                string
	Room               string
	ReloadOnDisconnect bool
	User               protocol.User
	ReconnectDelay     time.Duration
	SendInterval       time.Duration
	Logger             *slog.Logger
	Dialer             *websocket.Dialer

	// OnReload runs after a full reset, before reconnecting.
	OnReload func()
	// OnHandshake and OnOthers run on the reader goroutine.
	OnHandshake func(id string)
	OnOthers    func(others []protocol.Shared)
}

func DefaultOptions() Options {
	return Options{
		URL:            DefaultURL,
		Room:           DefaultRoom,
		User:           protocol.NewUser(DefaultName, protocol.NewColour(DefaultColour)),
		ReconnectDelay: 3 * time.Second,
		SendInterval:   time.Second / 30,
		Logger:         slog.Default(),
		Dialer:         websocket.DefaultDialer,
	}
}

// RandomColour picks a colour for users who did not choose one.
func RandomColour() protocol.Colour {
	return protocol.NewColour(rand.Uint32() & 0xFFFFFF)
}

type Manager struct {
	opts  Options
	world *World

	mu    sync.Mutex
	ctx   context.Context
	state State
	conn  *websocket.Conn

	writeMu sync.Mutex
}

// NewManager fills zero fields of opts from DefaultOptions.
func NewManager(opts Options) *Manager {
	defaults := DefaultOptions()
	if opts.URL == "" {
		opts.URL = defaults.URL
	}
	if opts.Room == "" {
		opts.Room = defaults.Room
	}
	if opts.User.IsZero() {
		opts.User = defaults.User
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaults.ReconnectDelay
	}
	if opts.SendInterval <= 0 {
		opts.SendInterval = defaults.SendInterval
	}
	if opts.Logger == nil {
		opts.Logger = defaults.Logger
	}
	if opts.Dialer == nil {
		opts.Dialer = defaults.Dialer
	}
	return &Manager{
		opts:  opts,
		world: NewWorld(opts.User),
		state: StateDisconnected,
	}
}

func (m *Manager) World() *World { return m.world }

func (m *Manager) URL() string { return m.opts.URL + m.opts.Room }

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Run connects and publishes the local pose until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.ctx != nil {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.ctx = ctx
	m.mu.Unlock()

	m.Connect()

	ticker := time.NewTicker(m.opts.SendInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return nil
		case <-ticker.C:
			m.sendPose()
		}
	}
}

// Connect starts a dial unless a connection is live or already being
// established. It reports whether a dial was started.
func (m *Manager) Connect() bool {
	m.mu.Lock()
	if m.ctx == nil || m.ctx.Err() != nil {
		m.mu.Unlock()
		return false
	}
	if m.conn != nil || m.state == StateConnecting {
		m.mu.Unlock()
		return false
	}
	m.state = StateConnecting
	ctx := m.ctx
	m.mu.Unlock()

	go m.dial(ctx)
	return true
}

func (m *Manager) dial(ctx context.Context) {
	url := m.URL()
	m.opts.Logger.Info("client.connecting", "url", url)

	conn, _, err := m.opts.Dialer.DialContext(ctx, url, nil)
	if err != nil {
		m.opts.Logger.Warn("client.dial_failed", "url", url, "error", err)
		m.mu.Lock()
		if m.state != StateClosed {
			m.state = StateError
		}
		m.mu.Unlock()
		m.scheduleReconnect()
		return
	}

	m.mu.Lock()
	if ctx.Err() != nil {
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.conn = conn
	m.state = StateConnected
	m.mu.Unlock()
	m.opts.Logger.Info("client.connected", "url", url)

	go m.readLoop(conn)

	// introduce ourselves right away; the server accepts user before handshake
	if err := m.write(conn, protocol.NewUserMessage(m.world.User())); err != nil {
		m.drop(conn, err)
	}
}

func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.drop(conn, err)
			return
		}
		m.handle(conn, data)
	}
}

func (m *Manager) handle(conn *websocket.Conn, data []byte) {
	// frames still buffered on a released connection belong to the old world
	if !m.isLive(conn) {
		return
	}
	msg, err := protocol.DecodeServer(data)
	if err != nil {
		m.opts.Logger.Warn("client.bad_frame", "error", err)
		return
	}
	switch msg.Cmd {
	case protocol.CmdHandshake:
		m.world.SetID(msg.ID)
		m.opts.Logger.Debug("client.handshake", "id", msg.ID)
		if m.opts.OnHandshake != nil {
			m.opts.OnHandshake(msg.ID)
		}
	case protocol.CmdOthers:
		m.world.ReplaceOthers(msg.Others)
		if m.opts.OnOthers != nil {
			m.opts.OnOthers(m.world.Others())
		}
	case protocol.CmdReload:
		m.opts.Logger.Info("client.reload")
		if m.release(conn, StateDisconnected) {
			m.reload()
		}
	default:
		m.opts.Logger.Info("client.unknown_cmd", "cmd", string(msg.Cmd))
	}
}

func (m *Manager) isLive(conn *websocket.Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn == conn
}

// release forgets conn if it is still the live connection and closes it.
// It reports whether conn was live.
func (m *Manager) release(conn *websocket.Conn, next State) bool {
	m.mu.Lock()
	live := m.conn == conn
	if live {
		m.conn = nil
		if m.state != StateClosed {
			m.state = next
		}
	}
	m.mu.Unlock()
	conn.Close()
	return live
}

// drop handles a failed or closed connection. Only the first report for the
// live connection schedules a reconnect.
func (m *Manager) drop(conn *websocket.Conn, err error) {
	next := StateError
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		next = StateClosed
	}
	if !m.release(conn, next) {
		return
	}
	// readiness belongs to a connection; the next one gets its own handshake
	m.world.SetID("")
	m.opts.Logger.Info("client.disconnected", "error", err)
	m.scheduleReconnect()
}

// scheduleReconnect never cancels an earlier timer. Each timer re-checks
// liveness through Connect when it fires.
func (m *Manager) scheduleReconnect() {
	time.AfterFunc(m.opts.ReconnectDelay, func() {
		m.mu.Lock()
		if m.ctx == nil || m.ctx.Err() != nil {
			m.mu.Unlock()
			return
		}
		if m.conn == nil && m.state != StateConnecting {
			m.state = StateDisconnected
		}
		m.mu.Unlock()

		if m.opts.ReloadOnDisconnect {
			m.reload()
			return
		}
		m.Connect()
	})
}

func (m *Manager) reload() {
	m.world.Reset()
	if m.opts.OnReload != nil {
		m.opts.OnReload()
	}
	m.Connect()
}

func (m *Manager) sendPose() {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil || !m.world.Ready() {
		return
	}
	if err := m.write(conn, protocol.NewPoseMessage(m.world.Self())); err != nil {
		m.drop(conn, err)
	}
}

// SendUser republishes the local user record, for example after a rename.
func (m *Manager) SendUser() error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("send user: not connected")
	}
	if err := m.write(conn, protocol.NewUserMessage(m.world.User())); err != nil {
		m.drop(conn, err)
		return fmt.Errorf("send user: %w", err)
	}
	return nil
}

func (m *Manager) write(conn *websocket.Conn, msg protocol.ClientMessage) error {
	data, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Cmd, err)
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (m *Manager) shutdown() {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.state = StateClosed
	m.mu.Unlock()
	if conn == nil {
		return
	}

	m.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	m.writeMu.Unlock()
	conn.Close()
}
