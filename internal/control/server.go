package control

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/runnerr0/mirrorme/internal/background"
)

const (
	MessagesPath = "/v1/messages"
	StatusPath   = "/status"
	// TokenHeader carries the per-install control token.
	TokenHeader  = "X-Mirrorme-Token"

	defaultMaxRequestSize = 1 << 20
	shutdownTimeout       = 5 * time.Second
)

// Dispatcher hands a message to the coordinator and waits for the reply.
// *background.Coordinator implements it.
type Dispatcher interface {
	Send(ctx context.Context, msg background.Message) (background.Response, error)
}

// Status is the body of GET /status.
type Status struct {
	Status    string               `json:"status"`
	Version   string               `json:"version"`
	StartedAt time.Time            `json:"started_at"`
	State     background.StateView `json:"state"`
}

type ServerOptions struct {
	Addr           string
	Version        string
	MaxRequestSize int64
	Logger         *zap.Logger
	// Token must accompany every request in TokenHeader. With no token
	// configured every request is refused.
	Token          string
	// AllowedOrigins are browser origins allowed besides extension pages
	// (chrome-extension:// and moz-extension://).
	AllowedOrigins []string
}

type Server struct {
	dispatcher Dispatcher
	opts       ServerOptions
	logger     *zap.Logger
	startedAt  time.Time
}

func NewServer(d Dispatcher, opts ServerOptions) *Server {
	if opts.MaxRequestSize <= 0 {
		opts.MaxRequestSize = defaultMaxRequestSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Server{dispatcher: d, opts: opts, logger: opts.Logger, startedAt: time.Now().UTC()}
}

// Handler returns the instrumented route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST "+MessagesPath, otelhttp.NewHandler(http.HandlerFunc(s.handleMessage), "POST "+MessagesPath))
	mux.Handle("GET "+StatusPath, otelhttp.NewHandler(http.HandlerFunc(s.handleStatus), "GET "+StatusPath))
	return s.corsMiddleware(s.authMiddleware(mux))
}

// Run listens on opts.Addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("control server listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errc:
		return fmt.Errorf("control server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown control server: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("control server: %w", err)
	}
	return nil
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.opts.MaxRequestSize)
	var req Request
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, background.Response{Error: "request too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, background.Response{Error: "invalid JSON: " + err.Error()})
		return
	}

	msg, err := req.Message()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, background.Response{Error: err.Error()})
		return
	}

	resp, err := s.dispatcher.Send(r.Context(), msg)
	if err != nil {
		s.logger.Warn("control message not handled", zap.String("action", req.Action), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, background.Response{Error: err.Error()})
		return
	}
	s.logger.Debug("control message", zap.String("action", req.Action), zap.Bool("success", resp.Success))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.dispatcher.Send(r.Context(), background.GetState{})
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, Status{Status: "stopping", Version: s.opts.Version, StartedAt: s.startedAt})
		return
	}
	view, _ := resp.Data.(background.StateView)
	writeJSON(w, http.StatusOK, Status{
		Status:    "ok",
		Version:   s.opts.Version,
		StartedAt: s.startedAt,
		State:     view,
	})
}

// originAllowed reports whether a browser page at origin may call the
// endpoint.
func (s *Server) originAllowed(origin string) bool {
	if strings.HasPrefix(origin, "chrome-extension://") || strings.HasPrefix(origin, "moz-extension://") {
		return true
	}
	return slices.Contains(s.opts.AllowedOrigins, origin)
}

// corsMiddleware lets extension pages reach the loopback endpoint and refuses
// every other web origin. Requests without an Origin header come from local
// programs and pass through to the token check.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Add("Vary", "Origin")
			if !s.originAllowed(origin) {
				s.logger.Warn("control request from disallowed origin", zap.String("origin", origin), zap.String("path", r.URL.Path))
				writeJSON(w, http.StatusForbidden, background.Response{Error: "origin not allowed"})
				return
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+TokenHeader)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authMiddleware requires the control token on every request.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	want := []byte(s.opts.Token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get(TokenHeader))
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			s.logger.Warn("control request without valid token", zap.String("path", r.URL.Path))
			writeJSON(w, http.StatusUnauthorized, background.Response{Error: "missing or invalid " + TokenHeader})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
