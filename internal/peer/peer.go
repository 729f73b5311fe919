// Package peer negotiates the optional WebRTC frame path. The viewer
// offers two data channels over an established websocket session; the
// host answers. Candidates are gathered before each description is sent,
// so no separate candidate events are exchanged.
package peer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/Alberto0802/RemotePcControlWithPhone/internal/transport"
)

// ErrNegotiation is returned when the remote side sends an unusable
// description or the channels never open.
var ErrNegotiation = errors.New("peer: negotiation failed")

// DefaultICEServers is the STUN configuration used outside tests.
var DefaultICEServers = []webrtc.ICEServer{
	{URLs: []string{"stun:stun.l.google.com:19302", "stun:stun1.l.google.com:19302"}},
}

// Options configures a PeerConnection.
type Options struct {
	ICEServers []webrtc.ICEServer
	// Loopback lets ICE use 127.0.0.1 candidates, which in-process tests
	// need.
	Loopback bool
}

// DefaultOptions uses the public STUN servers.
func DefaultOptions() Options {
	return Options{ICEServers: DefaultICEServers}
}

// NewPeerConnection creates a PeerConnection from opts.
func NewPeerConnection(opts Options) (*webrtc.PeerConnection, error) {
	var se webrtc.SettingEngine
	if opts.Loopback {
		se.SetIncludeLoopbackCandidate(true)
	}
	api := webrtc.NewAPI(webrtc.WithSettingEngine(se))
	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: opts.ICEServers})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	return pc, nil
}

// newConn creates a PeerConnection and the DataChannelConn that will own
// it. The conn closes when the peer connection fails or closes.
func newConn(opts Options, log zerolog.Logger) (*webrtc.PeerConnection, *transport.DataChannelConn, error) {
	pc, err := NewPeerConnection(opts)
	if err != nil {
		return nil, nil, err
	}
	conn := transport.NewDataChannelConn(log)
	conn.SetRelease(pc.Close)
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Debug().Str("state", state.String()).Msg("peer connection state")
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			go conn.Close()
		}
	})
	return pc, conn, nil
}

// setLocal applies desc and waits for ICE gathering to finish, returning
// the final description with candidates embedded.
func setLocal(ctx context.Context, pc *webrtc.PeerConnection, desc webrtc.SessionDescription) (json.RawMessage, error) {
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(desc); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return nil, fmt.Errorf("gather candidates: %w", ctx.Err())
	}
	local := pc.LocalDescription()
	if local == nil {
		return nil, fmt.Errorf("%w: no local description", ErrNegotiation)
	}
	return json.Marshal(local)
}

func parseDescription(raw json.RawMessage, want webrtc.SDPType) (webrtc.SessionDescription, error) {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		return desc, fmt.Errorf("%w: decode description: %v", ErrNegotiation, err)
	}
	if desc.Type != want {
		return desc, fmt.Errorf("%w: expected %s, got %s", ErrNegotiation, want, desc.Type)
	}
	return desc, nil
}
