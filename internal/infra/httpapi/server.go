package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"wear-voice/internal/domain"
)

// Buttons are the three screen actions plus the recognition state.
type Buttons interface {
	StartVoiceCommand(ctx context.Context) error
	ReadMessage(ctx context.Context) error
	Help(ctx context.Context) error
	State() domain.RecognitionState
}

type PermissionResolver interface {
	Resolve(p domain.Permission, granted bool) int
}

// RouteRegistrar mounts extra routes, such as the HTTP capture source.
type RouteRegistrar interface {
	Register(mux *http.ServeMux)
}

type Server struct {
	addr        string
	buttons     Buttons
	permissions PermissionResolver
	hub         *NoticeHub
	limiter     *RateLimiter
	logger      *slog.Logger
	mux         *http.ServeMux

	mu     sync.Mutex
	server *http.Server
}

func NewServer(
	addr string,
	buttons Buttons,
	permissions PermissionResolver,
	hub *NoticeHub,
	rateLimit int,
	logger *slog.Logger,
	extra ...RouteRegistrar,
) *Server {
	s := &Server{
		addr:        addr,
		buttons:     buttons,
		permissions: permissions,
		hub:         hub,
		limiter:     NewRateLimiter(rateLimit, time.Minute),
		logger:      logger,
		mux:         http.NewServeMux(),
	}

	s.mux.HandleFunc("POST /buttons/voice-command", s.limiter.Middleware(s.handleVoiceCommand))
	s.mux.HandleFunc("POST /buttons/read-message", s.limiter.Middleware(s.handleReadMessage))
	s.mux.HandleFunc("POST /buttons/help", s.limiter.Middleware(s.handleHelp))
	s.mux.HandleFunc("POST /permissions/microphone", s.handleMicrophonePermission)
	s.mux.Handle("GET /notices", hub)
	// No rate limiting on health check
	s.mux.HandleFunc("GET /health", s.handleHealth)

	for _, r := range extra {
		r.Register(s.mux)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start listens in the background; it fails only if the address cannot be bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	go func() {
		s.logger.Info("HTTP server starting", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	s.hub.Close()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

type buttonResponse struct {
	Status string `json:"status"`
	State  string `json:"state"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleVoiceCommand(w http.ResponseWriter, r *http.Request) {
	s.respond(w, "voice-command", s.buttons.StartVoiceCommand(r.Context()))
}

func (s *Server) handleReadMessage(w http.ResponseWriter, r *http.Request) {
	s.respond(w, "read-message", s.buttons.ReadMessage(r.Context()))
}

func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	s.respond(w, "help", s.buttons.Help(r.Context()))
}

func (s *Server) respond(w http.ResponseWriter, button string, err error) {
	resp := buttonResponse{Status: "ok", State: string(s.buttons.State())}
	code := http.StatusOK

	if err != nil {
		resp.Status = "error"
		resp.Error = err.Error()
		code = statusFor(err)
		s.logger.Warn("button failed", "button", button, "error", err)
	}

	writeJSON(w, code, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrRecognizerBusy):
		return http.StatusConflict
	case errors.Is(err, domain.ErrOutputUnavailable), errors.Is(err, domain.ErrEngineNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	default:
		var recErr *domain.RecognitionError
		if errors.As(err, &recErr) {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	}
}

func (s *Server) handleMicrophonePermission(w http.ResponseWriter, r *http.Request) {
	granted, err := strconv.ParseBool(r.URL.Query().Get("granted"))
	if err != nil {
		http.Error(w, "granted must be true or false", http.StatusBadRequest)
		return
	}

	waiting := s.permissions.Resolve(domain.PermissionMicrophone, granted)
	writeJSON(w, http.StatusOK, map[string]any{"granted": granted, "resumed": waiting})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"state":   string(s.buttons.State()),
		"clients": s.hub.Clients(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
