package debug

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/joebot/vyna/internal/logging"
	"github.com/joebot/vyna/internal/rpc"
	"github.com/joebot/vyna/internal/state"
)

const writeTimeout = 5 * time.Second

// Server is the local inspector: live state, metrics and the log level.
type Server struct {
	addr    string
	store   *state.Store
	methods []rpc.Method
	level   *slog.LevelVar
}

// NewServer creates an inspector bound to addr. level may be nil, in which
// case the log level cannot be changed at runtime.
func NewServer(addr string, store *state.Store, methods []rpc.Method, level *slog.LevelVar) *Server {
	return &Server{addr: addr, store: store, methods: methods, level: level}
}

// Router builds the inspector routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/state", s.handleState)
	r.Get("/methods", s.handleMethods)
	r.Get("/ws", s.handleStream)
	r.Put("/log-level", s.handleLogLevel)
	return r
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Inspector listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleMethods(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"methods": s.methods})
}

// handleStream sends a snapshot on connect and after every store change.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("inspector: websocket accept failed", "err", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "stream ended")

	changes, cancel := s.store.Subscribe()
	defer cancel()

	ctx := c.CloseRead(r.Context())
	for {
		if err := s.writeSnapshot(ctx, c); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				slog.Debug("inspector: stream write failed", "err", err)
			}
			return
		}
		select {
		case <-ctx.Done():
			c.Close(websocket.StatusNormalClosure, "")
			return
		case <-changes:
		}
	}
}

func (s *Server) writeSnapshot(ctx context.Context, c *websocket.Conn) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c, s.store.Snapshot())
}

func (s *Server) handleLogLevel(w http.ResponseWriter, r *http.Request) {
	if s.level == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "log level is fixed"})
		return
	}
	var req struct {
		Level string `json:"level"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil || req.Level == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "expected {\"level\": \"debug|info|warn|error\"}"})
		return
	}
	lvl := logging.ParseLevel(req.Level)
	s.level.Set(lvl)
	slog.Info("inspector: log level changed", "level", lvl)
	writeJSON(w, http.StatusOK, map[string]string{"level": lvl.String()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// requestLogger logs each request once it completes.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Debug("inspector: request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"latency", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
