package transport

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Alberto0802/RemotePcControlWithPhone/internal/protocol"
)

// Options tunes a websocket connection.
type Options struct {
	// ConnectTimeout bounds Dial (handshake included).
	ConnectTimeout time.Duration
	// WriteTimeout bounds each websocket write.
	WriteTimeout time.Duration
	// PongWait is how long the peer may stay silent before the connection
	// is considered dead. Pings are sent at 9/10 of it.
	PongWait time.Duration
	// ReadLimit caps an inbound message.
	ReadLimit int64
	// SendQueue is the reliable outbound queue depth.
	SendQueue int
}

// DefaultOptions returns the timeouts used by both binaries.
func DefaultOptions() Options {
	return Options{
		ConnectTimeout: 5 * time.Second,
		WriteTimeout:   5 * time.Second,
		PongWait:       60 * time.Second,
		ReadLimit:      8 << 20,
		SendQueue:      64,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = def.ConnectTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = def.WriteTimeout
	}
	if o.PongWait <= 0 {
		o.PongWait = def.PongWait
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = def.ReadLimit
	}
	if o.SendQueue <= 0 {
		o.SendQueue = def.SendQueue
	}
	return o
}

// WSConn is a Conn over a gorilla websocket. Reliable events share an
// ordered queue; volatile events use a one-slot queue that drops when a
// previous volatile message has not been written yet.
type WSConn struct {
	id   string
	ws   *websocket.Conn
	opts Options
	log  zerolog.Logger
	reg  *registry

	send     chan []byte
	volatile chan []byte

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

var _ Conn = (*WSConn)(nil)

func newWSConn(ws *websocket.Conn, opts Options, log zerolog.Logger) *WSConn {
	opts = opts.withDefaults()
	id := uuid.NewString()
	return &WSConn{
		id:       id,
		ws:       ws,
		opts:     opts,
		log:      log.With().Str("conn", id).Str("remote", ws.RemoteAddr().String()).Logger(),
		reg:      newRegistry(),
		send:     make(chan []byte, opts.SendQueue),
		volatile: make(chan []byte, 1),
		done:     make(chan struct{}),
	}
}

// Start launches the read and write goroutines. Subscribe handlers before
// calling Start so no early event is missed. Start is idempotent.
func (c *WSConn) Start() {
	c.startOnce.Do(func() {
		c.ws.SetReadLimit(c.opts.ReadLimit)
		_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		c.ws.SetPongHandler(func(string) error {
			return c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		})
		go c.readLoop()
		go c.writeLoop()
	})
}

func (c *WSConn) ID() string { return c.id }

func (c *WSConn) Emit(event string, payload any) error {
	data, err := protocol.Marshal(event, payload)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

func (c *WSConn) EmitVolatile(event string, payload any) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	data, err := protocol.Marshal(event, payload)
	if err != nil {
		return err
	}
	select {
	case c.volatile <- data:
		return nil
	default:
		return ErrDropped
	}
}

func (c *WSConn) On(event string, h Handler) func() { return c.reg.on(event, h) }

func (c *WSConn) OnDisconnect(fn func()) func() { return c.reg.onDisconnect(fn) }

func (c *WSConn) Connected() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

func (c *WSConn) Done() <-chan struct{} { return c.done }

// Close sends a close frame, tears down the socket and runs the
// disconnect callbacks.
func (c *WSConn) Close() error {
	c.shutdown(nil)
	return nil
}

func (c *WSConn) shutdown(cause error) {
	c.closeOnce.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = c.ws.Close()
		if cause != nil && !isNormalClose(cause) {
			c.log.Debug().Err(cause).Msg("connection closed")
		} else {
			c.log.Debug().Msg("connection closed")
		}
		c.reg.fireDisconnect()
	})
}

func (c *WSConn) readLoop() {
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			c.shutdown(err)
			return
		}
		env, err := protocol.Unmarshal(raw)
		if err != nil {
			c.log.Debug().Err(err).Msg("dropping malformed message")
			continue
		}
		if !c.reg.dispatch(env.Event, env.Data) {
			c.log.Trace().Str("event", env.Event).Msg("no handler")
		}
	}
}

func (c *WSConn) writeLoop() {
	ping := time.NewTicker(c.opts.PongWait * 9 / 10)
	defer ping.Stop()
	for {
		var data []byte
		select {
		case <-c.done:
			return
		case data = <-c.send:
		case data = <-c.volatile:
		case <-ping.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout)); err != nil {
				c.shutdown(err)
				return
			}
			continue
		}
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
		if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
			c.shutdown(err)
			return
		}
	}
}

func isNormalClose(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true
	}
	return errors.Is(err, websocket.ErrCloseSent)
}
