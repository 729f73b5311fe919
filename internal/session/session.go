// Package session wires a host connection to its capture loop and to the
// input injector. Every handler a session registers is released when the
// connection drops or the session is closed.
package session

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Alberto0802/RemotePcControlWithPhone/internal/capture"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/clock"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/compositor"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/encoder"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/input"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/protocol"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/stream"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/transport"
)

// DefaultGreeting is sent to every viewer right after it connects.
const DefaultGreeting = "Conexión establecida con el servidor"

// Config tunes every session a Host creates.
type Config struct {
	Stream   stream.Config
	Greeting string
}

// Deps are shared by all sessions except the encoder, which carries
// per-session quality and is built by NewEncoder.
type Deps struct {
	Source     capture.Source
	Injector   input.Injector
	Compositor *compositor.Compositor
	NewEncoder func() encoder.Encoder
	Clock      clock.Clock
}

// Host tracks the live sessions of a host process.
type Host struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewHost returns a Host with no sessions.
func NewHost(cfg Config, deps Deps, log zerolog.Logger) *Host {
	if cfg.Greeting == "" {
		cfg.Greeting = DefaultGreeting
	}
	return &Host{
		cfg:      cfg,
		deps:     deps,
		log:      log.With().Str("component", "session").Logger(),
		sessions: make(map[string]*Session),
	}
}

// Session is the host side of one viewer connection.
type Session struct {
	host *Host
	conn transport.Conn
	ctrl *stream.Controller
	log  zerolog.Logger

	unsubs    []func()
	closeOnce sync.Once
}

// Attach starts a session on conn: it subscribes the control and input
// handlers, then greets the viewer. The session ends when conn
// disconnects.
func (h *Host) Attach(conn transport.Conn) *Session {
	log := h.log.With().Str("session", conn.ID()).Logger()
	s := &Session{
		host: h,
		conn: conn,
		log:  log,
		ctrl: stream.New(h.cfg.Stream, stream.Deps{
			Source:     h.deps.Source,
			Cursor:     h.deps.Injector,
			Compositor: h.deps.Compositor,
			Encoder:    h.deps.NewEncoder(),
			Out:        conn,
			Clock:      h.deps.Clock,
			Log:        log,
		}),
	}

	s.unsubs = append(s.unsubs,
		conn.On(protocol.EventStartStream, func(json.RawMessage) { s.ctrl.Start() }),
		conn.On(protocol.EventStopStream, func(json.RawMessage) { s.ctrl.Stop() }),
		conn.On(protocol.EventMouseMove, s.onMouseMove),
		conn.On(protocol.EventMouseClick, s.onMouseClick),
		conn.On(protocol.EventTypeKey, s.onTypeKey),
		conn.On(protocol.EventRegisterDevice, s.onRegisterDevice),
		conn.OnDisconnect(s.Close),
	)

	h.mu.Lock()
	h.sessions[conn.ID()] = s
	n := len(h.sessions)
	h.mu.Unlock()
	log.Info().Int("sessions", n).Msg("session opened")

	if err := conn.Emit(protocol.EventConnected, protocol.Connected{Message: h.cfg.Greeting}); err != nil {
		log.Warn().Err(err).Msg("greeting not sent")
	}
	return s
}

// Len reports the number of live sessions.
func (h *Host) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close ends every session and closes their connections.
func (h *Host) Close() {
	h.mu.Lock()
	all := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		all = append(all, s)
	}
	h.mu.Unlock()
	for _, s := range all {
		s.Close()
		_ = s.conn.Close()
	}
}

// Streaming reports whether the session's capture loop is running.
func (s *Session) Streaming() bool { return s.ctrl.Streaming() }

// Close stops the capture loop and releases every subscription. It does
// not close the connection and is idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.ctrl.Stop()
		for _, unsub := range s.unsubs {
			unsub()
		}
		h := s.host
		h.mu.Lock()
		delete(h.sessions, s.conn.ID())
		n := len(h.sessions)
		h.mu.Unlock()
		s.log.Info().Int("sessions", n).Msg("session closed")
	})
}

func (s *Session) onMouseMove(data json.RawMessage) {
	var m protocol.MouseMove
	if err := protocol.Decode(data, &m); err != nil {
		s.log.Debug().Err(err).Msg("ignoring malformed mouse-move")
		return
	}
	input.Move(s.host.deps.Injector, m)
}

func (s *Session) onMouseClick(data json.RawMessage) {
	var c protocol.MouseClick
	if err := protocol.Decode(data, &c); err != nil {
		s.log.Debug().Err(err).Msg("ignoring malformed mouse-click")
		return
	}
	if !input.Click(s.host.deps.Injector, c) {
		s.log.Debug().Str("button", c.Button).Msg("ignoring unknown button")
	}
}

func (s *Session) onTypeKey(data json.RawMessage) {
	var k protocol.TypeKey
	if err := protocol.Decode(data, &k); err != nil {
		s.log.Debug().Err(err).Msg("ignoring malformed type-key")
		return
	}
	if !input.Key(s.host.deps.Injector, k) {
		s.log.Debug().Str("key", k.Key).Msg("ignoring unsupported key")
	}
}

func (s *Session) onRegisterDevice(data json.RawMessage) {
	var d protocol.RegisterDevice
	if err := protocol.Decode(data, &d); err != nil {
		s.log.Debug().Err(err).Msg("ignoring malformed register-device")
		return
	}
	s.log.Info().Str("ip", d.IP).Str("name", d.Name).Msg("device registered")
}
