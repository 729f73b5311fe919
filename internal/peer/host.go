package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/Alberto0802/RemotePcControlWithPhone/internal/protocol"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/transport"
)

// negotiateTimeout bounds gathering plus the wait for both channels.
const negotiateTimeout = 15 * time.Second

// Host answers frame-path offers arriving on websocket sessions.
type Host struct {
	opts   Options
	log    zerolog.Logger
	onOpen func(*transport.DataChannelConn)
}

// NewHost returns a Host that hands every conn whose channels open to
// onOpen. onOpen must subscribe its handlers and then greet the viewer
// with a connected event.
func NewHost(opts Options, log zerolog.Logger, onOpen func(*transport.DataChannelConn)) *Host {
	return &Host{
		opts:   opts,
		log:    log.With().Str("component", "peer").Logger(),
		onOpen: onOpen,
	}
}

// Serve listens for offers on signal. A new offer replaces the previous
// frame path of that viewer. The returned func stops listening and closes
// the current frame path; it also runs when signal disconnects.
func (h *Host) Serve(signal transport.Conn) (stop func()) {
	var (
		mu      sync.Mutex
		current *transport.DataChannelConn
		stopped bool
	)
	replace := func(next *transport.DataChannelConn) {
		mu.Lock()
		prev := current
		current = next
		if stopped && next != nil {
			current = nil
			prev, next = next, nil
		}
		mu.Unlock()
		if prev != nil {
			_ = prev.Close()
		}
	}

	unsubOffer := signal.On(protocol.EventRTCOffer, func(data json.RawMessage) {
		var sd protocol.SessionDescription
		if err := protocol.Decode(data, &sd); err != nil {
			h.log.Debug().Err(err).Msg("ignoring malformed offer")
			return
		}
		go func() {
			conn, err := h.answer(signal, sd.SDP)
			if err != nil {
				h.log.Warn().Err(err).Str("signal", signal.ID()).Msg("frame path negotiation failed")
				return
			}
			replace(conn)
		}()
	})

	var once sync.Once
	stop = func() {
		once.Do(func() {
			unsubOffer()
			mu.Lock()
			stopped = true
			mu.Unlock()
			replace(nil)
		})
	}
	signal.OnDisconnect(stop)
	return stop
}

func (h *Host) answer(signal transport.Conn, raw json.RawMessage) (*transport.DataChannelConn, error) {
	offer, err := parseDescription(raw, webrtc.SDPTypeOffer)
	if err != nil {
		return nil, err
	}
	pc, conn, err := newConn(h.opts, h.log)
	if err != nil {
		return nil, err
	}
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if err := conn.Attach(dc); err != nil {
			h.log.Warn().Err(err).Msg("rejecting data channel")
			_ = dc.Close()
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), negotiateTimeout)
	defer cancel()

	if err := pc.SetRemoteDescription(offer); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: set remote description: %v", ErrNegotiation, err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create answer: %w", err)
	}
	sdp, err := setLocal(ctx, pc, answer)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := signal.Emit(protocol.EventRTCAnswer, protocol.SessionDescription{SDP: sdp}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send answer: %w", err)
	}

	select {
	case <-conn.Ready():
	case <-conn.Done():
		return nil, fmt.Errorf("%w: channels closed before opening", ErrNegotiation)
	case <-signal.Done():
		_ = conn.Close()
		return nil, transport.ErrClosed
	case <-ctx.Done():
		_ = conn.Close()
		return nil, fmt.Errorf("%w: channels did not open: %v", ErrNegotiation, ctx.Err())
	}
	h.log.Info().Str("signal", signal.ID()).Str("conn", conn.ID()).Msg("frame path open")
	h.onOpen(conn)
	return conn, nil
}
