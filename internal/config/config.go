// Package config parses the host and viewer command lines, with an
// optional TOML file underneath them. A flag set on the command line always
// wins over the same key in the file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
)

// ErrHelp is returned when -h/--help was requested; usage has been printed.
var ErrHelp = pflag.ErrHelp

// Frame transports the viewer can ask for.
const (
	TransportWebSocket   = "websocket"
	TransportDataChannel = "datachannel"
)

// Host holds the host binary configuration.
type Host struct {
	Addr            string
	Display         int
	FPS             int
	MinFrameTime    time.Duration
	MaxWidth        int
	Quality         int
	MinQuality      int
	AdaptiveQuality bool
	// WebRTC answers data-channel frame path offers.
	WebRTC bool
}

// DefaultHost listens on :3000 at 30fps.
func DefaultHost() Host {
	return Host{
		Addr:            ":3000",
		FPS:             30,
		MinFrameTime:    30 * time.Millisecond,
		MaxWidth:        1280,
		Quality:         70,
		MinQuality:      30,
		AdaptiveQuality: true,
		WebRTC:          true,
	}
}

// Interval is the capture ticker period for FPS.
func (h Host) Interval() time.Duration {
	return time.Second / time.Duration(h.FPS)
}

// Validate reports the first out-of-range value.
func (h Host) Validate() error {
	switch {
	case strings.TrimSpace(h.Addr) == "":
		return errors.New("config: addr is required")
	case h.Display < 0:
		return fmt.Errorf("config: display %d must be >= 0", h.Display)
	case h.FPS < 1 || h.FPS > 60:
		return fmt.Errorf("config: fps %d out of range 1-60", h.FPS)
	case h.MinFrameTime < 0:
		return fmt.Errorf("config: min frame time %s is negative", h.MinFrameTime)
	case h.MaxWidth <= 0:
		return fmt.Errorf("config: max width %d must be positive", h.MaxWidth)
	case h.Quality < 1 || h.Quality > 100:
		return fmt.Errorf("config: quality %d out of range 1-100", h.Quality)
	case h.MinQuality < 1 || h.MinQuality > h.Quality:
		return fmt.Errorf("config: min quality %d out of range 1-%d", h.MinQuality, h.Quality)
	}
	return nil
}

type hostFile struct {
	Addr            string `toml:"addr"`
	Display         int    `toml:"display"`
	FPS             int    `toml:"fps"`
	MinFrameTimeMS  int64  `toml:"min_frame_time_ms"`
	MaxWidth        int    `toml:"max_width"`
	Quality         int    `toml:"quality"`
	MinQuality      int    `toml:"min_quality"`
	AdaptiveQuality bool   `toml:"adaptive_quality"`
	WebRTC          bool   `toml:"webrtc"`
}

// ParseHostFlags parses args (without the program name).
func ParseHostFlags(args []string) (Host, error) {
	cfg := DefaultHost()
	var (
		path        string
		minFrameMS  int64
		defMinFrame = cfg.MinFrameTime.Milliseconds()
	)
	fs := pflag.NewFlagSet("remotepc-host", pflag.ContinueOnError)
	fs.StringVar(&path, "config", "", "TOML config file")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.IntVar(&cfg.Display, "display", cfg.Display, "display index to capture (0 = primary)")
	fs.IntVar(&cfg.FPS, "fps", cfg.FPS, "target frames per second (1-60)")
	fs.Int64Var(&minFrameMS, "min-frame-time-ms", defMinFrame, "minimum gap between two frames")
	fs.IntVar(&cfg.MaxWidth, "max-width", cfg.MaxWidth, "downscale frames wider than this")
	fs.IntVar(&cfg.Quality, "quality", cfg.Quality, "JPEG quality (1-100)")
	fs.IntVar(&cfg.MinQuality, "min-quality", cfg.MinQuality, "lowest quality adaptive mode may use")
	fs.BoolVar(&cfg.AdaptiveQuality, "adaptive-quality", cfg.AdaptiveQuality, "lower quality when encoding falls behind")
	fs.BoolVar(&cfg.WebRTC, "webrtc", cfg.WebRTC, "answer data-channel frame path offers")
	if err := fs.Parse(args); err != nil {
		return Host{}, err
	}
	if fs.NArg() > 0 {
		return Host{}, fmt.Errorf("config: unexpected argument %q", fs.Arg(0))
	}
	cfg.MinFrameTime = time.Duration(minFrameMS) * time.Millisecond

	if path != "" {
		var raw hostFile
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return Host{}, fmt.Errorf("load host config: %w", err)
		}
		o := overlay{meta: meta, fs: fs}
		o.setString("addr", &cfg.Addr, raw.Addr)
		o.setInt("display", &cfg.Display, raw.Display)
		o.setInt("fps", &cfg.FPS, raw.FPS)
		o.setMillis("min_frame_time_ms", &cfg.MinFrameTime, raw.MinFrameTimeMS)
		o.setInt("max_width", &cfg.MaxWidth, raw.MaxWidth)
		o.setInt("quality", &cfg.Quality, raw.Quality)
		o.setInt("min_quality", &cfg.MinQuality, raw.MinQuality)
		o.setBool("adaptive_quality", &cfg.AdaptiveQuality, raw.AdaptiveQuality)
		o.setBool("webrtc", &cfg.WebRTC, raw.WebRTC)
	}
	if err := cfg.Validate(); err != nil {
		return Host{}, err
	}
	return cfg, nil
}

// overlay copies TOML keys that are present in the file and whose flag
// was not set on the command line.
type overlay struct {
	meta toml.MetaData
	fs   *pflag.FlagSet
}

func (o overlay) use(key string) bool {
	return o.meta.IsDefined(key) && !o.fs.Changed(strings.ReplaceAll(key, "_", "-"))
}

func (o overlay) setString(key string, dst *string, v string) {
	if o.use(key) {
		*dst = strings.TrimSpace(v)
	}
}

func (o overlay) setInt(key string, dst *int, v int) {
	if o.use(key) {
		*dst = v
	}
}

func (o overlay) setFloat(key string, dst *float64, v float64) {
	if o.use(key) {
		*dst = v
	}
}

func (o overlay) setBool(key string, dst *bool, v bool) {
	if o.use(key) {
		*dst = v
	}
}

func (o overlay) setMillis(key string, dst *time.Duration, v int64) {
	if o.use(key) {
		*dst = time.Duration(v) * time.Millisecond
	}
}
