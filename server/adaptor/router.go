package adaptor

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/ponyo877/replicator/server/domain"
	"github.com/rs/cors"
)

type Router struct {
	ws      *Adaptor
	uc      Usecase
	metrics http.Handler
	logger  *slog.Logger
}

// NewRouter builds the HTTP surface. Any websocket upgrade is routed to the
// relay regardless of path; the remaining routes serve operators.
func NewRouter(ws *Adaptor, uc Usecase, metrics http.Handler, origins []string, logger *slog.Logger) http.Handler {
	rt := &Router{ws: ws, uc: uc, metrics: metrics, logger: logger}

	r := mux.NewRouter()
	// "//lobby" must reach the relay as is, not as a redirect
	r.SkipClean(true)

	r.MatcherFunc(func(req *http.Request, _ *mux.RouteMatch) bool {
		return websocket.IsWebSocketUpgrade(req)
	}).HandlerFunc(ws.ServeWS)

	r.HandleFunc("/healthz", rt.healthz).Methods(http.MethodGet)
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}

	admin := r.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/rooms", rt.listRooms).Methods(http.MethodGet)
	admin.HandleFunc("/rooms/members", rt.listMembers).Methods(http.MethodGet)
	admin.HandleFunc("/rooms/reload", rt.reloadRoom).Methods(http.MethodPost)
	admin.HandleFunc("/sessions/history", rt.listHistory).Methods(http.MethodGet)

	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"stats":  rt.uc.GetStats(),
	})
}

func (rt *Router) listRooms(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"rooms": rt.uc.ListRooms(),
		"stats": rt.uc.GetStats(),
	})
}

func (rt *Router) listMembers(w http.ResponseWriter, r *http.Request) {
	roomPath := domain.NewRoomPath(r.URL.Query().Get("room"))
	members, err := rt.uc.ListMembers(roomPath)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"room":    roomPath,
		"members": members,
	})
}

func (rt *Router) reloadRoom(w http.ResponseWriter, r *http.Request) {
	roomPath := domain.NewRoomPath(r.URL.Query().Get("room"))
	sent, err := rt.uc.ReloadRoom(roomPath)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.logger.Info("admin.reload", "room", roomPath.String(), "sent", sent)
	writeJSON(w, http.StatusOK, map[string]any{
		"room": roomPath,
		"sent": sent,
	})
}

func (rt *Router) listHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	roomPath := domain.NewRoomPath(query.Get("room"))
	limit := 0
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	events, err := rt.uc.ListHistory(r.Context(), roomPath, query.Get("pattern"), limit)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	out := make([]eventJSON, len(events))
	for i, e := range events {
		out[i] = toEventJSON(e)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"room":   roomPath,
		"events": out,
	})
}

type eventJSON struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Room      string `json:"room"`
	Name      string `json:"name,omitempty"`
	Remote    string `json:"remote,omitempty"`
	Timestamp string `json:"timestamp"`
}

func toEventJSON(e domain.StreamEvent) eventJSON {
	return eventJSON{
		ID:        e.ID,
		Type:      e.Type.String(),
		SessionID: e.SessionID,
		Room:      e.RoomPath.String(),
		Name:      e.Name,
		Remote:    e.Remote,
		Timestamp: e.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

func (rt *Router) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrHistoryDisabled):
		status = http.StatusServiceUnavailable
	default:
		rt.logger.Error("admin.failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
