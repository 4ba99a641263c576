package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"dockmon/internal/engine"
	"dockmon/internal/gateway"
	"dockmon/internal/snapshot"

	"github.com/gorilla/websocket"
)

type errorResponse struct {
	Error string `json:"error"`
}

type logsResponse struct {
	Lines []string `json:"lines"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// Health is the body of /healthz.
type Health struct {
	Status    string `json:"status"`
	Degraded  bool   `json:"degraded"`
	Sequence  uint64 `json:"sequence,omitempty"`
	LastError string `json:"lastError,omitempty"`
}

var errNotReady = errors.New("snapshot not ready")

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap := s.agg.Snapshot()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: errNotReady.Error()})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleInstance(w http.ResponseWriter, r *http.Request) {
	snap := s.agg.Snapshot()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: errNotReady.Error()})
		return
	}
	group, ok := snap.Instance(r.PathValue("name"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "instance not found"})
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	id, err := s.resolve(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	live, err := s.actions.LiveStats(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, live)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	lines := 0
	if v := r.URL.Query().Get("lines"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "lines must be an integer"})
			return
		}
		lines = n
	}
	id, err := s.resolve(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.actions.TailLogs(r.Context(), id, lines)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if out == nil {
		out = []string{}
	}
	writeJSON(w, http.StatusOK, logsResponse{Lines: out})
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	id, err := s.resolve(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.actions.Restart(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, statusResponse{Status: "restarting"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.actions.Refresh(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h := Health{Status: "idle"}
	if err := s.agg.LastError(); err != nil {
		h.Degraded = true
		h.LastError = err.Error()
	}
	code := http.StatusServiceUnavailable
	if snap := s.agg.Snapshot(); snap != nil {
		h.Status = "ready"
		h.Sequence = snap.Sequence
		code = http.StatusOK
	}
	writeJSON(w, code, h)
}

// handleWatch pushes every published snapshot to a websocket client until
// either side goes away.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.log.Debug("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The read pump only handles control frames and notices disconnects.
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.log.Debug("watch client read failed", "err", err)
				}
				return
			}
		}
	}()

	updates := s.broker.Subscribe(ctx)
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	s.log.Debug("watch client connected", "remote", r.RemoteAddr)
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snap); err != nil {
				s.log.Debug("watch client write failed", "err", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// resolve maps a container name or id prefix to the full id using the
// latest snapshot. Unknown references pass through unchanged so the engine
// decides. A prefix shared by several containers is refused.
func (s *Server) resolve(ref string) (string, error) {
	snap := s.agg.Snapshot()
	if snap == nil {
		return ref, nil
	}
	rec, err := snap.Lookup(ref)
	switch {
	case err == nil:
		return rec.ID, nil
	case errors.Is(err, snapshot.ErrAmbiguousRef):
		return "", err
	default:
		return ref, nil
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusNotFound {
		msg = gateway.ErrContainerGone.Error()
	}
	if code >= http.StatusInternalServerError {
		s.log.Warn("request failed", "method", r.Method, "path", r.URL.Path, "status", code, "err", err)
	}
	writeJSON(w, code, errorResponse{Error: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, snapshot.ErrAmbiguousRef):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrContainerGone), errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrConnection), errors.Is(err, engine.ErrPermission):
		return http.StatusServiceUnavailable
	case errors.Is(err, engine.ErrEngine):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
