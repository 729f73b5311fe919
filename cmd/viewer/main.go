package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/Alberto0802/RemotePcControlWithPhone/internal/config"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/decoder"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/devices"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/display"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/logging"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/peer"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/protocol"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/relay"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/render"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/transport"
)

const usage = `usage:
  remotepc-viewer [flags] --host ADDRESS|DEVICE
  remotepc-viewer [flags] devices list
  remotepc-viewer [flags] devices add NAME ADDRESS
  remotepc-viewer [flags] devices rename ID NAME
  remotepc-viewer [flags] devices delete ID`

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, config.ErrHelp) {
			fmt.Fprintln(os.Stderr, usage)
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, rest, err := config.ParseViewerFlags(args)
	if err != nil {
		return err
	}
	log := logging.ConfigureRuntime()

	store, err := devices.Open(cfg.DevicesFile)
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		if rest[0] != "devices" {
			return fmt.Errorf("unknown command %q\n%s", rest[0], usage)
		}
		return runDevices(os.Stdout, store, rest[1:])
	}

	host, err := resolveHost(store, cfg.Host)
	if err != nil {
		return err
	}
	return view(cfg, host, log)
}

// resolveHost maps a saved device name or ID to its address. Anything else
// is used as an address.
func resolveHost(store *devices.Store, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("no host given\n%s", usage)
	}
	if d, err := store.Find(key); err == nil {
		return d.IP, nil
	}
	return key, nil
}

func view(cfg config.Viewer, host string, log zerolog.Logger) error {
	url := transport.URL(host, cfg.Port)
	opts := transport.DefaultOptions()
	opts.ConnectTimeout = cfg.ConnectTimeout

	ctx := context.Background()
	conn, err := transport.Dial(ctx, url, opts, log)
	switch {
	case errors.Is(err, transport.ErrConnectTimeout):
		return fmt.Errorf("connection to %s timed out after %s", host, cfg.ConnectTimeout)
	case errors.Is(err, transport.ErrConnectFailed):
		return fmt.Errorf("could not connect to the server at %s: %w", host, err)
	case err != nil:
		return err
	}
	defer conn.Close()

	renderer := render.New(decoder.NewJPEGDecoder(), cfg.Fade, log)
	renderer.Reset()
	onFrame := func(data json.RawMessage) {
		var f protocol.Frame
		if err := protocol.Decode(data, &f); err != nil {
			log.Debug().Err(err).Msg("ignoring malformed frame")
			return
		}
		renderer.Push(f)
	}

	conn.On(protocol.EventConnected, func(data json.RawMessage) {
		var c protocol.Connected
		if protocol.Decode(data, &c) == nil {
			log.Info().Str("host", host).Str("message", c.Message).Msg("connected")
		}
	})
	conn.On(protocol.EventScreenData, onFrame)
	conn.Start()

	if err := conn.Emit(protocol.EventRegisterDevice, protocol.RegisterDevice{IP: host, Name: cfg.Name}); err != nil {
		return fmt.Errorf("register device: %w", err)
	}

	// session is where control, input and frames flow: the websocket, or
	// the data channels when they could be negotiated.
	var session transport.Conn = conn
	if cfg.FrameTransport == config.TransportDataChannel {
		pctx, cancel := context.WithTimeout(ctx, 3*cfg.ConnectTimeout)
		dc, err := peer.NewViewer(peer.DefaultOptions(), log).Connect(pctx, conn)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("data channel frame path unavailable, streaming over websocket")
		} else {
			defer dc.Close()
			dc.On(protocol.EventScreenData, onFrame)
			session = dc
		}
	}

	rl := relay.New(relay.Config{
		Interval:    cfg.RelayInterval,
		Radius:      cfg.JoystickRadius,
		Sensitivity: cfg.Sensitivity,
	}, session, nil, log)

	if err := session.Emit(protocol.EventStartStream, nil); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}

	win := display.New(renderer, rl, "RemotePC - "+host, conn.Done(), log)
	runErr := win.Run()

	rl.End()
	if session.Connected() {
		_ = session.Emit(protocol.EventStopStream, nil)
	}
	if runErr != nil {
		return fmt.Errorf("display: %w", runErr)
	}
	select {
	case <-conn.Done():
		return errors.New("connection to host lost")
	default:
	}
	return nil
}
