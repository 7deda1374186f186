package usecase

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ponyo877/replicator/protocol"
	"github.com/ponyo877/replicator/server/adaptor"
	"github.com/ponyo877/replicator/server/domain"
)

// RelayUsecase drives one connection through join, updates and leave.
type RelayUsecase struct {
	streamManager domain.StreamManager
	recorder      *Recorder
	logger        *slog.Logger
}

func NewRelayUsecase(streamManager domain.StreamManager, recorder *Recorder, logger *slog.Logger) adaptor.Relay {
	return &RelayUsecase{
		streamManager: streamManager,
		recorder:      recorder,
		logger:        logger,
	}
}

// Connect registers a new session and queues its handshake. The session
// only becomes visible to the broadcaster after the handshake is queued, so
// the client always learns its id before the first snapshot.
func (u *RelayUsecase) Connect(roomPath domain.RoomPath, remote string) (*domain.Session, error) {
	session := u.streamManager.JoinRoom(roomPath, remote)

	frame, err := protocol.EncodeHandshake(session.ID)
	if err != nil {
		u.abort(session)
		return nil, fmt.Errorf("encode handshake: %w", err)
	}
	if !session.Enqueue(frame) {
		u.abort(session)
		return nil, fmt.Errorf("queue handshake for %s: outbound queue unavailable", session.ID)
	}
	session.Activate()

	u.logger.Info("session.joined",
		"id", session.ID,
		"room", roomPath.String(),
		"remote", remote,
		"members", u.streamManager.GetRoomClientCount(roomPath))
	u.recorder.Record(domain.NewJoinEvent(session))

	return session, nil
}

func (u *RelayUsecase) abort(session *domain.Session) {
	session.Close()
	u.streamManager.LeaveRoom(session.ID)
}

// HandleMessage applies one inbound frame. Bad frames are logged and
// dropped; they never end the connection.
func (u *RelayUsecase) HandleMessage(session *domain.Session, data []byte) {
	msg, err := protocol.DecodeClient(data)
	if err != nil {
		u.logger.Warn("session.bad_frame", "id", session.ID, "error", err)
		return
	}
	u.streamManager.CountMessage()

	switch msg.Cmd {
	case protocol.CmdUser:
		session.ApplyUser(msg.User)
		u.logger.Debug("session.user", "id", session.ID, "name", session.DisplayName())
	case protocol.CmdPose:
		session.ApplyPose(msg)
	default:
		u.logger.Debug("session.unknown_cmd", "id", session.ID, "cmd", string(msg.Cmd))
	}
}

// Disconnect is safe to call from both the reader and the writer; only the
// first call unregisters the session.
func (u *RelayUsecase) Disconnect(session *domain.Session, cause error) {
	if !session.Close() {
		return
	}
	if _, err := u.streamManager.LeaveRoom(session.ID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		u.logger.Error("session.leave_failed", "id", session.ID, "error", err)
	}

	attrs := []any{
		"id", session.ID,
		"room", session.RoomPath.String(),
		"name", session.DisplayName(),
	}
	if cause != nil {
		attrs = append(attrs, "cause", cause)
	}
	u.logger.Info("session.closed", attrs...)
	u.recorder.Record(domain.NewLeaveEvent(session))
}
