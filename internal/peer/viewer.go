package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/Alberto0802/RemotePcControlWithPhone/internal/protocol"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/transport"
)

// Viewer negotiates the frame path from the offering side.
type Viewer struct {
	opts Options
	log  zerolog.Logger
}

// NewViewer returns a Viewer that creates peer connections from opts.
func NewViewer(opts Options, log zerolog.Logger) *Viewer {
	return &Viewer{opts: opts, log: log.With().Str("component", "peer").Logger()}
}

// Connect offers the events and frames channels over signal and returns
// once the host has greeted the viewer on the new conn. The caller owns
// the returned conn.
func (v *Viewer) Connect(ctx context.Context, signal transport.Conn) (*transport.DataChannelConn, error) {
	pc, conn, err := newConn(v.opts, v.log)
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() {
		if !ok {
			_ = conn.Close()
		}
	}()

	ordered := false
	noRetransmits := uint16(0)
	frames, err := pc.CreateDataChannel(transport.FramesLabel, &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: &noRetransmits,
	})
	if err != nil {
		return nil, fmt.Errorf("create frames channel: %w", err)
	}
	events, err := pc.CreateDataChannel(transport.EventsLabel, nil)
	if err != nil {
		return nil, fmt.Errorf("create events channel: %w", err)
	}
	if err := conn.Attach(events); err != nil {
		return nil, err
	}
	if err := conn.Attach(frames); err != nil {
		return nil, err
	}

	greeted := make(chan struct{})
	var greetOnce sync.Once
	unsubGreet := conn.On(protocol.EventConnected, func(json.RawMessage) {
		greetOnce.Do(func() { close(greeted) })
	})
	defer unsubGreet()

	answers := make(chan json.RawMessage, 1)
	unsubAnswer := signal.On(protocol.EventRTCAnswer, func(data json.RawMessage) {
		var sd protocol.SessionDescription
		if err := protocol.Decode(data, &sd); err != nil {
			v.log.Debug().Err(err).Msg("ignoring malformed answer")
			return
		}
		select {
		case answers <- sd.SDP:
		default:
		}
	})
	defer unsubAnswer()

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	sdp, err := setLocal(ctx, pc, offer)
	if err != nil {
		return nil, err
	}
	if err := signal.Emit(protocol.EventRTCOffer, protocol.SessionDescription{SDP: sdp}); err != nil {
		return nil, fmt.Errorf("send offer: %w", err)
	}
	v.log.Debug().Msg("offer sent")

	var raw json.RawMessage
	select {
	case raw = <-answers:
	case <-signal.Done():
		return nil, transport.ErrClosed
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: waiting for answer: %v", ErrNegotiation, ctx.Err())
	}
	answer, err := parseDescription(raw, webrtc.SDPTypeAnswer)
	if err != nil {
		return nil, err
	}
	if err := pc.SetRemoteDescription(answer); err != nil {
		return nil, fmt.Errorf("%w: set remote description: %v", ErrNegotiation, err)
	}

	select {
	case <-greeted:
	case <-conn.Done():
		return nil, fmt.Errorf("%w: channels closed before greeting", ErrNegotiation)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: waiting for channels: %v", ErrNegotiation, ctx.Err())
	}
	v.log.Info().Msg("data channel frame path ready")
	ok = true
	return conn, nil
}
