package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Environment variables that override the profile defaults.
const (
	// EnvLogLevel takes a level name, see ParseLevel.
	EnvLogLevel   = "REMOTEPC_LOG_LEVEL"
	// EnvLogNoColor disables console colors when set to a true value.
	EnvLogNoColor = "REMOTEPC_LOG_NOCOLOR"
)

// Profile selects the default level and format.
type Profile int

const (
	// ProfileRuntime logs info and above with timestamps.
	ProfileRuntime Profile = iota
	// ProfileTest logs debug and above without timestamps.
	ProfileTest
)

var (
	configureOnce sync.Once
	base          zerolog.Logger
)

// ConfigureRuntime sets up the process logger for the host and viewer binaries.
func ConfigureRuntime() zerolog.Logger {
	return Configure(ProfileRuntime, os.Stderr)
}

// ConfigureTests sets up a debug-level logger without timestamps.
func ConfigureTests() zerolog.Logger {
	return Configure(ProfileTest, os.Stderr)
}

// Configure builds the process logger once; later calls return the same logger.
func Configure(profile Profile, out io.Writer) zerolog.Logger {
	configureOnce.Do(func() {
		cfg := defaultConfig(profile)
		applyEnvOverrides(&cfg)
		base = build(cfg, out)
	})
	return base
}

type config struct {
	level     zerolog.Level
	timestamp bool
	noColor   bool
}

func defaultConfig(profile Profile) config {
	switch profile {
	case ProfileTest:
		return config{level: zerolog.DebugLevel}
	default:
		return config{level: zerolog.InfoLevel, timestamp: true}
	}
}

func applyEnvOverrides(cfg *config) {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.level = lvl
	}
	if v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(EnvLogNoColor))); err == nil {
		cfg.noColor = v
	}
}

func build(cfg config, out io.Writer) zerolog.Logger {
	w := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    cfg.noColor,
		TimeFormat: time.TimeOnly,
	}
	if !cfg.timestamp {
		w.PartsExclude = []string{zerolog.TimestampFieldName}
	}
	ctx := zerolog.New(w).Level(cfg.level).With()
	if cfg.timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger()
}

// ParseLevel maps a level name to a zerolog level. The boolean is false
// for empty or unknown names.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}
