package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"

	"github.com/Alberto0802/RemotePcControlWithPhone/internal/devices"
)

// Viewer holds the viewer binary configuration.
type Viewer struct {
	// Host is an address or the name of a saved device.
	Host           string
	Port           int
	Name           string
	ConnectTimeout time.Duration
	RelayInterval  time.Duration
	JoystickRadius float64
	Sensitivity    float64
	Fade           time.Duration
	FrameTransport string
	DevicesFile    string
}

// DefaultViewer mirrors the phone client: port 3000, 5s connect timeout,
// a 50-point joystick at 0.7 sensitivity resent every 50ms.
func DefaultViewer() Viewer {
	name, _ := os.Hostname()
	return Viewer{
		Port:           3000,
		Name:           name,
		ConnectTimeout: 5 * time.Second,
		RelayInterval:  50 * time.Millisecond,
		JoystickRadius: 50,
		Sensitivity:    0.7,
		Fade:           200 * time.Millisecond,
		FrameTransport: TransportWebSocket,
		DevicesFile:    devices.DefaultPath(),
	}
}

// Validate reports the first out-of-range value. Host is checked by the
// connect command, not here, so device management works without one.
func (v Viewer) Validate() error {
	switch {
	case v.Port < 1 || v.Port > 65535:
		return fmt.Errorf("config: port %d out of range", v.Port)
	case v.ConnectTimeout <= 0:
		return errors.New("config: connect timeout must be positive")
	case v.RelayInterval <= 0:
		return errors.New("config: relay interval must be positive")
	case v.JoystickRadius <= 0:
		return errors.New("config: joystick radius must be positive")
	case v.Sensitivity <= 0:
		return errors.New("config: sensitivity must be positive")
	case v.Fade < 0:
		return errors.New("config: fade must not be negative")
	case v.FrameTransport != TransportWebSocket && v.FrameTransport != TransportDataChannel:
		return fmt.Errorf("config: frame transport %q is not %s or %s",
			v.FrameTransport, TransportWebSocket, TransportDataChannel)
	case strings.TrimSpace(v.DevicesFile) == "":
		return errors.New("config: devices file is required")
	}
	return nil
}

type viewerFile struct {
	Host             string  `toml:"host"`
	Port             int     `toml:"port"`
	Name             string  `toml:"name"`
	ConnectTimeoutMS int64   `toml:"connect_timeout_ms"`
	RelayIntervalMS  int64   `toml:"relay_interval_ms"`
	JoystickRadius   float64 `toml:"joystick_radius"`
	Sensitivity      float64 `toml:"sensitivity"`
	FadeMS           int64   `toml:"fade_ms"`
	FrameTransport   string  `toml:"frame_transport"`
	DevicesFile      string  `toml:"devices_file"`
}

// ParseViewerFlags parses args (without the program name) and returns the
// positional arguments left over, which select a subcommand.
func ParseViewerFlags(args []string) (Viewer, []string, error) {
	cfg := DefaultViewer()
	var (
		path                       string
		connectMS, relayMS, fadeMS int64
	)
	fs := pflag.NewFlagSet("remotepc-viewer", pflag.ContinueOnError)
	fs.StringVar(&path, "config", "", "TOML config file")
	fs.StringVar(&cfg.Host, "host", cfg.Host, "host address or saved device name")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "host port")
	fs.StringVar(&cfg.Name, "name", cfg.Name, "name announced to the host")
	fs.Int64Var(&connectMS, "connect-timeout-ms", cfg.ConnectTimeout.Milliseconds(), "give up connecting after this long")
	fs.Int64Var(&relayMS, "relay-interval-ms", cfg.RelayInterval.Milliseconds(), "resend period of a held joystick")
	fs.Float64Var(&cfg.JoystickRadius, "joystick-radius", cfg.JoystickRadius, "joystick radius in points")
	fs.Float64Var(&cfg.Sensitivity, "sensitivity", cfg.Sensitivity, "cursor delta per joystick point")
	fs.Int64Var(&fadeMS, "fade-ms", cfg.Fade.Milliseconds(), "cross-fade between frames")
	fs.StringVar(&cfg.FrameTransport, "frame-transport", cfg.FrameTransport, "websocket or datachannel")
	fs.StringVar(&cfg.DevicesFile, "devices-file", cfg.DevicesFile, "saved devices file")
	if err := fs.Parse(args); err != nil {
		return Viewer{}, nil, err
	}
	cfg.ConnectTimeout = time.Duration(connectMS) * time.Millisecond
	cfg.RelayInterval = time.Duration(relayMS) * time.Millisecond
	cfg.Fade = time.Duration(fadeMS) * time.Millisecond

	if path != "" {
		var raw viewerFile
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return Viewer{}, nil, fmt.Errorf("load viewer config: %w", err)
		}
		o := overlay{meta: meta, fs: fs}
		o.setString("host", &cfg.Host, raw.Host)
		o.setInt("port", &cfg.Port, raw.Port)
		o.setString("name", &cfg.Name, raw.Name)
		o.setMillis("connect_timeout_ms", &cfg.ConnectTimeout, raw.ConnectTimeoutMS)
		o.setMillis("relay_interval_ms", &cfg.RelayInterval, raw.RelayIntervalMS)
		o.setFloat("joystick_radius", &cfg.JoystickRadius, raw.JoystickRadius)
		o.setFloat("sensitivity", &cfg.Sensitivity, raw.Sensitivity)
		o.setMillis("fade_ms", &cfg.Fade, raw.FadeMS)
		o.setString("frame_transport", &cfg.FrameTransport, raw.FrameTransport)
		o.setString("devices_file", &cfg.DevicesFile, raw.DevicesFile)
	}
	cfg.FrameTransport = strings.ToLower(strings.TrimSpace(cfg.FrameTransport))
	if err := cfg.Validate(); err != nil {
		return Viewer{}, nil, err
	}
	return cfg, fs.Args(), nil
}
