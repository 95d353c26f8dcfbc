package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/GriffinCanCode/subtrans/internal/config"
	apperrors "github.com/GriffinCanCode/subtrans/internal/errors"
	"github.com/GriffinCanCode/subtrans/internal/orchestrator"
	"github.com/GriffinCanCode/subtrans/internal/orchestrator/dispatch"
	"github.com/GriffinCanCode/subtrans/internal/orchestrator/history"
	"github.com/GriffinCanCode/subtrans/internal/screen"
	"github.com/GriffinCanCode/subtrans/internal/trace"
)

// Controller is the part of the orchestrator the server drives.
type Controller interface {
	StartMonitor(region screen.Region, sourceLang string) (string, error)
	StopMonitor(handle string) error
	PauseMonitor(handle string, paused bool) error
	SubmitManualTranslation(ctx context.Context, region screen.Region) (string, error)
	SwitchProvider(name string) error
	SetCredential(provider, key string) error
	Status() orchestrator.Status
	History() *history.Store
}

// ClientMessage is what overlay clients send over the socket.
type ClientMessage struct {
	Type string `json:"type"` // translate, start, stop, pause, resume
	screen.Region
	SourceLang string `json:"source_lang,omitempty"`
	Handle     string `json:"handle,omitempty"`
}

// ReplyMessage acknowledges a client message.
type ReplyMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Handle    string `json:"handle,omitempty"`
	Text      string `json:"text,omitempty"`
}

type monitorRequest struct {
	screen.Region
	SourceLang string `json:"source_lang"`
}

type handleRequest struct {
	Handle string `json:"handle"`
}

type pauseRequest struct {
	Handle string `json:"handle"`
	Paused bool   `json:"paused"`
}

type providerRequest struct {
	Name string `json:"name"`
}

type credentialRequest struct {
	Provider string `json:"provider"`
	Key      string `json:"key"`
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	ctrl Controller
	hub  *Hub
}

// New creates a new server. hub must be the sink the controller's presenter
// writes to.
func New(ctrl Controller, hub *Hub) *Server {
	return &Server{ctrl: ctrl, hub: hub}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("POST /api/monitor/start", s.handleMonitorStart)
	mux.HandleFunc("POST /api/monitor/stop", s.handleMonitorStop)
	mux.HandleFunc("POST /api/monitor/pause", s.handleMonitorPause)
	mux.HandleFunc("POST /api/translate", s.handleTranslate)
	mux.HandleFunc("POST /api/provider", s.handleProvider)
	mux.HandleFunc("POST /api/credential", s.handleCredential)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/transcript", s.handleTranscript)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		trace.Logger(r.Context()).Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	c := s.hub.add(conn)
	defer s.hub.remove(c)

	baseCtx := r.Context()
	log := trace.Logger(baseCtx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	for {
		var msg ClientMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		if !c.limiter.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			c.send(ReplyMessage{Type: "error", Text: "rate limit exceeded"})
			continue
		}
		c.send(s.handleClientMessage(baseCtx, msg))
	}
}

func (s *Server) handleClientMessage(ctx context.Context, msg ClientMessage) ReplyMessage {
	switch msg.Type {
	case "translate":
		id, err := s.ctrl.SubmitManualTranslation(ctx, msg.Region)
		if err != nil {
			return ReplyMessage{Type: "error", Text: err.Error()}
		}
		return ReplyMessage{Type: "accepted", RequestID: id}
	case "start":
		handle, err := s.ctrl.StartMonitor(msg.Region, msg.SourceLang)
		if err != nil {
			return ReplyMessage{Type: "error", Text: err.Error()}
		}
		return ReplyMessage{Type: "monitor_started", Handle: handle}
	case "stop":
		if err := s.ctrl.StopMonitor(msg.Handle); err != nil {
			return ReplyMessage{Type: "error", Text: err.Error()}
		}
		return ReplyMessage{Type: "monitor_stopped", Handle: msg.Handle}
	case "pause", "resume":
		paused := msg.Type == "pause"
		if err := s.ctrl.PauseMonitor(msg.Handle, paused); err != nil {
			return ReplyMessage{Type: "error", Text: err.Error()}
		}
		if paused {
			return ReplyMessage{Type: "monitor_paused", Handle: msg.Handle}
		}
		return ReplyMessage{Type: "monitor_resumed", Handle: msg.Handle}
	default:
		return ReplyMessage{Type: "error", Text: "unknown message type " + strconv.Quote(msg.Type)}
	}
}

func (s *Server) handleMonitorStart(w http.ResponseWriter, r *http.Request) {
	var req monitorRequest
	if !decode(w, r, &req) {
		return
	}
	handle, err := s.ctrl.StartMonitor(req.Region, req.SourceLang)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"handle": handle})
}

func (s *Server) handleMonitorStop(w http.ResponseWriter, r *http.Request) {
	var req handleRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.ctrl.StopMonitor(req.Handle); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleMonitorPause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.ctrl.PauseMonitor(req.Handle, req.Paused); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": req.Paused})
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var region screen.Region
	if !decode(w, r, &region) {
		return
	}
	id, err := s.ctrl.SubmitManualTranslation(r.Context(), region)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"request_id": id})
}

func (s *Server) handleProvider(w http.ResponseWriter, r *http.Request) {
	var req providerRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.ctrl.SwitchProvider(req.Name); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"provider": req.Name})
}

func (s *Server) handleCredential(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.ctrl.SetCredential(req.Provider, req.Key); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

type statusResponse struct {
	orchestrator.Status
	Clients int `json:"clients"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: s.ctrl.Status(), Clients: s.hub.Clients()})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	window := DefaultTranscriptWindow
	if v := r.URL.Query().Get("seconds"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, r, apperrors.Newf(apperrors.InvalidArgument, "invalid seconds %q", v))
			return
		}
		window = time.Duration(n) * time.Second
	}
	entries := s.ctrl.History().Since(window)
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func decode(w http.ResponseWriter, r *http.Request, into any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeError(w, r, apperrors.Wrap(err, apperrors.InvalidArgument, "invalid request body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatus(err)
	if status >= http.StatusInternalServerError {
		trace.Logger(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  apperrors.CodeOf(err).String(),
	})
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrUnknownMonitor), errors.Is(err, config.ErrUnknownProvider):
		return http.StatusNotFound
	case errors.Is(err, dispatch.ErrQueueFull), errors.Is(err, dispatch.ErrStopped):
		return http.StatusServiceUnavailable
	}
	switch apperrors.CodeOf(err) {
	case apperrors.InvalidArgument, apperrors.ConfigInvalid:
		return http.StatusBadRequest
	case apperrors.ConfigMissing:
		return http.StatusUnprocessableEntity
	case apperrors.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
