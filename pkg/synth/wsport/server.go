package wsport

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haivivi/tonewave/pkg/audio/pcm"
	"github.com/haivivi/tonewave/pkg/synth"
)

// Defaults for Server options.
const (
	DefaultFrameRate = 60
	DefaultChunk     = 20 * time.Millisecond
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFrameRate sets how many sampling ticks run per second.
func WithFrameRate(fps int) Option {
	return func(s *Server) {
		if fps > 0 {
			s.frameRate = fps
		}
	}
}

// WithChunk sets the duration of each rendered audio frame sent to the
// browser.
func WithChunk(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.chunk = d
		}
	}
}

// WithEngineOptions adds options applied to every session engine.
func WithEngineOptions(opts ...synth.Option) Option {
	return func(s *Server) {
		s.engineOpts = append(s.engineOpts, opts...)
	}
}

// Server upgrades HTTP requests to synth sessions.
type Server struct {
	cfg        synth.Config
	format     pcm.Format
	frameRate  int
	chunk      time.Duration
	logger     *slog.Logger
	engineOpts []synth.Option
	upgrader   websocket.Upgrader

	active   atomic.Int64
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewServer creates a server whose sessions run engines built from cfg. The
// sample rate must be one the browser stream supports: 16, 24, 44.1 or 48 kHz.
func NewServer(cfg synth.Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	format, err := pcm.FormatFor(cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("wsport: %w", err)
	}
	s := &Server{
		cfg:       cfg,
		format:    format,
		frameRate: DefaultFrameRate,
		chunk:     DefaultChunk,
		logger:    slog.Default().With("component", "wsport"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sessions returns the number of open sessions.
func (s *Server) Sessions() int {
	return int(s.active.Load())
}

// Handler returns a mux serving sessions on /ws and a health check on
// /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", s)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

// ServeHTTP implements http.Handler. It blocks until the session ends.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("wsport: upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	sess, err := newSession(conn, s)
	if err != nil {
		s.logger.Error("wsport: create session", "error", err)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error()))
		conn.Close()
		return
	}

	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()
	s.active.Add(1)
	defer func() {
		s.mu.Lock()
		delete(s.sessions, sess.ID())
		s.mu.Unlock()
		s.active.Add(-1)
	}()

	s.logger.Info("wsport: session opened", "session", sess.ID(), "remote", r.RemoteAddr)
	err = sess.Run(r.Context())
	s.logger.Info("wsport: session closed", "session", sess.ID(), "error", err)
}

// Close ends every open session.
func (s *Server) Close() error {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.Close()
	}
	return nil
}
