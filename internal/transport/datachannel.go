package transport

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/Alberto0802/RemotePcControlWithPhone/internal/protocol"
)

// Data channel labels negotiated by the viewer.
const (
	EventsLabel = "events"
	FramesLabel = "frames"
)

// maxBufferedFrames is the send backlog above which volatile frames are
// dropped instead of queued on the frames channel.
const maxBufferedFrames = 1 << 20

// DataChannelConn is a Conn over a pair of WebRTC data channels. Reliable
// events use the ordered events channel; volatile events use the
// unordered, no-retransmit frames channel.
//
// The conn exists before its channels do: Attach each channel as soon as
// it is created or announced so that no message arrives before a reader
// is installed.
type DataChannelConn struct {
	id  string
	log zerolog.Logger
	reg *registry

	mu      sync.Mutex
	events  *webrtc.DataChannel
	frames  *webrtc.DataChannel
	open    map[string]bool
	release func() error

	ready     chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

var _ Conn = (*DataChannelConn)(nil)

// NewDataChannelConn returns a conn with no channels attached.
func NewDataChannelConn(log zerolog.Logger) *DataChannelConn {
	id := uuid.NewString()
	return &DataChannelConn{
		id:    id,
		log:   log.With().Str("component", "transport").Str("conn", id).Str("kind", "datachannel").Logger(),
		reg:   newRegistry(),
		open:  make(map[string]bool, 2),
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Attach binds dc by its label. Channels with other labels are rejected.
func (c *DataChannelConn) Attach(dc *webrtc.DataChannel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch dc.Label() {
	case EventsLabel:
		if c.events != nil {
			return fmt.Errorf("transport: %s channel already attached", EventsLabel)
		}
		c.events = dc
		dc.OnClose(c.remoteClosed)
	case FramesLabel:
		if c.frames != nil {
			return fmt.Errorf("transport: %s channel already attached", FramesLabel)
		}
		c.frames = dc
	default:
		return fmt.Errorf("transport: unexpected data channel %q", dc.Label())
	}
	label := dc.Label()
	dc.OnMessage(c.receive)
	// pion runs the handler right away when dc is already open.
	dc.OnOpen(func() { c.markOpen(label) })
	return nil
}

// SetRelease registers fn to run once on Close, normally closing the
// PeerConnection that owns the channels.
func (c *DataChannelConn) SetRelease(fn func() error) {
	c.mu.Lock()
	c.release = fn
	c.mu.Unlock()
}

// Ready is closed once both channels are open.
func (c *DataChannelConn) Ready() <-chan struct{} { return c.ready }

func (c *DataChannelConn) markOpen(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open[label] = true
	if !c.open[EventsLabel] || !c.open[FramesLabel] {
		return
	}
	select {
	case <-c.ready:
	default:
		close(c.ready)
		c.log.Debug().Msg("data channels open")
	}
}

func (c *DataChannelConn) remoteClosed() {
	select {
	case <-c.done:
		return
	default:
	}
	_ = c.Close()
}

func (c *DataChannelConn) receive(msg webrtc.DataChannelMessage) {
	env, err := protocol.Unmarshal(msg.Data)
	if err != nil {
		c.log.Debug().Err(err).Msg("dropping malformed message")
		return
	}
	c.reg.dispatch(env.Event, env.Data)
}

func (c *DataChannelConn) channels() (events, frames *webrtc.DataChannel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events, c.frames
}

func (c *DataChannelConn) ID() string { return c.id }

func (c *DataChannelConn) Emit(event string, payload any) error {
	if !c.Connected() {
		return ErrClosed
	}
	data, err := protocol.Marshal(event, payload)
	if err != nil {
		return err
	}
	events, _ := c.channels()
	return events.SendText(string(data))
}

func (c *DataChannelConn) EmitVolatile(event string, payload any) error {
	if !c.Connected() {
		return ErrClosed
	}
	_, frames := c.channels()
	if frames.BufferedAmount() > maxBufferedFrames {
		return ErrDropped
	}
	data, err := protocol.Marshal(event, payload)
	if err != nil {
		return err
	}
	return frames.SendText(string(data))
}

func (c *DataChannelConn) On(event string, h Handler) func() { return c.reg.on(event, h) }

func (c *DataChannelConn) OnDisconnect(fn func()) func() { return c.reg.onDisconnect(fn) }

// Connected reports whether both channels are open and Close has not run.
func (c *DataChannelConn) Connected() bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case <-c.ready:
		return true
	default:
		return false
	}
}

func (c *DataChannelConn) Done() <-chan struct{} { return c.done }

func (c *DataChannelConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		events, frames, release := c.events, c.frames, c.release
		c.mu.Unlock()
		if frames != nil {
			_ = frames.Close()
		}
		if events != nil {
			_ = events.Close()
		}
		if release != nil {
			err = release()
		}
		c.log.Debug().Msg("connection closed")
		c.reg.fireDisconnect()
	})
	return err
}
