package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loiter74/Anima-LLM-Vtuber-sub001/internal/health"
)

// writeTimeout bounds one outbound frame write. A client that cannot drain
// frames this long is considered gone.
const writeTimeout = 30 * time.Second

// Server accepts WebSocket clients on /ws and serves the operational
// endpoints (/metrics, /healthz, /readyz).
type Server struct {
	manager *Manager
	logger  *slog.Logger
	http    *http.Server
}

// NewServer wires the HTTP mux around manager.
func NewServer(addr string, manager *Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{manager: manager, logger: logger}

	hc := health.New(health.Checker{
		Name: "sessions",
		Check: func(context.Context) error {
			// The session table being reachable is the readiness signal;
			// provider liveness is observable per turn via error events.
			_ = manager.SessionCount()
			return nil
		},
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", hc.Healthz)
	mux.HandleFunc("/readyz", hc.Readyz)

	s.http = &http.Server{Addr: addr, Handler: mux}
	return s
}

// ListenAndServe blocks serving clients until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("listening", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting clients, disconnects every session, and closes
// the HTTP server within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.manager.CloseAll()
	return s.http.Shutdown(ctx)
}

// handleWS upgrades one client connection and runs its read loop. The
// connection's send callback serializes writes; if the client blocks, the
// session blocks with it — the core never buffers beyond one frame.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "err", err)
		return
	}

	ctx := r.Context()
	var writeMu sync.Mutex
	send := func(frame any) error {
		data, err := json.Marshal(frame)
		if err != nil {
			return fmt.Errorf("server: encode frame: %w", err)
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		return conn.Write(wctx, websocket.MessageText, data)
	}

	sid, err := s.manager.Connect(send)
	if err != nil {
		s.logger.Warn("session setup failed", "err", err)
		conn.Close(websocket.StatusInternalError, "session setup failed")
		return
	}
	defer s.manager.Disconnect(sid)
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			s.logger.Debug("client read ended", "sid", sid, "err", err)
			return
		}
		if err := s.manager.HandleFrame(sid, data); err != nil {
			s.logger.Warn("frame handling failed", "sid", sid, "err", err)
		}
	}
}
