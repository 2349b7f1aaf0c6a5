package wsport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/haivivi/tonewave/pkg/audio/pcm"
	"github.com/haivivi/tonewave/pkg/synth"
	"github.com/haivivi/tonewave/pkg/synth/capture"
)

const writeTimeout = 5 * time.Second

// Session is one browser connection driving its own engine.
type Session struct {
	id        string
	conn      *websocket.Conn
	engine    *synth.Engine
	gate      *capture.Gate
	logger    *slog.Logger
	frameRate int
	chunk     time.Duration
	format    pcm.Format
	sink      pcm.Writer

	writeMu sync.Mutex

	micMu sync.Mutex
	mic   *io.PipeWriter

	closeCh   chan struct{}
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, srv *Server) (*Session, error) {
	s := &Session{
		id:        uuid.New().String(),
		conn:      conn,
		gate:      capture.NewGate(),
		frameRate: srv.frameRate,
		chunk:     srv.chunk,
		format:    srv.format,
		closeCh:   make(chan struct{}),
	}
	s.sink = pcm.WriteFunc(s.writeChunk)
	s.logger = srv.logger.With("session", s.id)

	opts := append([]synth.Option{
		synth.WithLogger(s.logger),
		synth.WithAcquirer(s.gate),
	}, srv.engineOpts...)
	opts = append(opts, synth.WithEmitter(s.emit))
	engine, err := synth.New(srv.cfg, opts...)
	if err != nil {
		return nil, err
	}
	s.engine = engine
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Engine returns the session engine.
func (s *Session) Engine() *synth.Engine { return s.engine }

// Run serves the connection until the peer leaves, ctx is done or Close is
// called.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	err := s.writeJSON(synth.NewMessage(&synth.Ready{
		Session:    s.id,
		SampleRate: s.format.SampleRate(),
		Format:     s.format.String(),
	}))
	if err != nil {
		s.Close()
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.renderLoop(ctx)
		// A dead writer means a dead peer.
		s.Close()
	}()
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	err = s.readLoop(ctx)
	cancel()
	s.Close()
	wg.Wait()
	return err
}

// Close ends the session. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closeCh)
		s.conn.Close()
		s.gate.Close()
		s.setMic(nil)
		if err := s.engine.Close(); err != nil {
			s.logger.Warn("wsport: close engine", "error", err)
		}
	})
	return nil
}

func (s *Session) readLoop(ctx context.Context) error {
	for {
		typ, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closeCh:
				return nil
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("wsport: read: %w", err)
		}
		switch typ {
		case websocket.TextMessage:
			s.handleText(ctx, data)
		case websocket.BinaryMessage:
			s.feedMic(data)
		}
	}
}

func (s *Session) handleText(ctx context.Context, data []byte) {
	var msg synth.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.emit(synth.NewMessage(&synth.Error{Kind: synth.ErrorKindBadMessage, Message: err.Error()}))
		return
	}
	if s.logger.Enabled(ctx, slog.LevelDebug) {
		s.logger.Debug("wsport: received", "type", msg.Type)
	}

	switch p := msg.Payload.(type) {
	case *synth.MicGrant:
		s.grantMic(p)
	case *synth.MicDeny:
		if !s.gate.Deny(string(p.ID)) {
			s.logger.Debug("wsport: micDeny without pending request", "id", p.ID)
		}
	default:
		if err := s.engine.Handle(ctx, msg); err != nil {
			s.logger.Debug("wsport: handle", "type", msg.Type, "error", err)
		}
	}
}

// grantMic answers a pending activateMic with a stream fed by subsequent
// binary frames.
func (s *Session) grantMic(p *synth.MicGrant) {
	if p.SampleRate <= 0 {
		s.emit(synth.NewMessage(&synth.Error{
			Kind:    synth.ErrorKindBadMessage,
			ID:      p.ID,
			Message: fmt.Sprintf("wsport: invalid mic sample rate %d", p.SampleRate),
		}))
		return
	}
	pr, pw := io.Pipe()
	stream, err := capture.NewPCMStream(pr, p.SampleRate, s.engine.SampleRate())
	if err != nil {
		pw.Close()
		s.emit(synth.NewMessage(&synth.Error{Kind: synth.ErrorKindBadMessage, ID: p.ID, Message: err.Error()}))
		return
	}
	if !s.gate.Grant(string(p.ID), stream) {
		stream.Close()
		s.emit(synth.NewMessage(&synth.Error{
			Kind:    synth.ErrorKindBadMessage,
			ID:      p.ID,
			Message: "wsport: micGrant without pending activateMic",
		}))
		return
	}
	s.setMic(pw)
}

func (s *Session) setMic(pw *io.PipeWriter) {
	s.micMu.Lock()
	old := s.mic
	s.mic = pw
	s.micMu.Unlock()
	if old != nil {
		old.Close()
	}
}

func (s *Session) feedMic(data []byte) {
	s.micMu.Lock()
	pw := s.mic
	s.micMu.Unlock()
	if pw == nil {
		return
	}
	if _, err := pw.Write(data); err != nil {
		// The voice was disposed and closed its stream.
		s.micMu.Lock()
		if s.mic == pw {
			s.mic = nil
		}
		s.micMu.Unlock()
	}
}

func (s *Session) renderLoop(ctx context.Context) {
	frames := max(1, int(s.format.SamplesInDuration(s.chunk)))
	buf := make([]float32, frames)
	out := make([]byte, 0, 2*frames)

	audio := time.NewTicker(s.chunk)
	defer audio.Stop()
	cadence := time.NewTicker(time.Second / time.Duration(s.frameRate))
	defer cadence.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closeCh:
			return
		case <-audio.C:
			s.engine.Render(buf)
			out = pcm.EncodeFloat32(out[:0], buf)
			if err := s.sink.Write(s.format.DataChunk(out)); err != nil {
				s.logger.Debug("wsport: write audio", "error", err)
				return
			}
		case <-cadence.C:
			s.engine.Tick()
		}
	}
}

func (s *Session) emit(msg synth.Message) {
	if err := s.writeJSON(msg); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		s.logger.Debug("wsport: write message", "type", msg.Type, "error", err)
	}
}

func (s *Session) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(v)
}

// writeChunk sends c as one binary message.
func (s *Session) writeChunk(c pcm.Chunk) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	w, err := s.conn.NextWriter(websocket.BinaryMessage)
	if err != nil {
		return err
	}
	if _, err := c.WriteTo(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
