// Package stream implements the host capture loop: a per-session ticker
// that captures, composites, encodes and emits screen frames.
package stream

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/Alberto0802/RemotePcControlWithPhone/internal/capture"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/clock"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/compositor"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/encoder"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/input"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/protocol"
)

// Reasons a step did not emit a frame.
var (
	ErrBusy      = errors.New("stream: previous capture still in flight")
	ErrThrottled = errors.New("stream: minimum frame time not elapsed")
	ErrStopped   = errors.New("stream: not streaming")
	ErrOffline   = errors.New("stream: connection closed")
)

// Emitter is the session side the controller hands finished frames to.
type Emitter interface {
	Connected() bool
	EmitVolatile(event string, payload any) error
}

// Config tunes the capture loop.
type Config struct {
	// Interval is the ticker period.
	Interval time.Duration
	// MinFrameTime is the smallest gap allowed between two emitted frames.
	MinFrameTime time.Duration
	// MaxQuality is the configured encode quality; MinQuality is the floor
	// adaptive quality may step down to.
	MaxQuality int
	MinQuality int
	Adaptive   bool
}

// DefaultConfig is ~30fps with a 30ms frame floor.
func DefaultConfig() Config {
	return Config{
		Interval:     33 * time.Millisecond,
		MinFrameTime: 30 * time.Millisecond,
		MaxQuality:   70,
		MinQuality:   30,
		Adaptive:     true,
	}
}

const (
	qualityStepDown  = 10
	qualityStepUp    = 5
	fastEncodesForUp = 10
)

// Deps are the capabilities a Controller orchestrates.
type Deps struct {
	Source     capture.Source
	Cursor     input.Cursor
	Compositor *compositor.Compositor
	Encoder    encoder.Encoder
	Out        Emitter
	Clock      clock.Clock
	Log        zerolog.Logger
}

// Controller owns the capture state of a single session. It is never
// shared between sessions.
type Controller struct {
	cfg   Config
	deps  Deps
	clock clock.Clock
	log   zerolog.Logger
	epoch time.Time

	inflight *semaphore.Weighted

	mu          sync.Mutex
	running     bool
	ticker      *clock.Ticker
	done        chan struct{}
	cancel      context.CancelFunc
	lastEmit    time.Time
	fastEncodes int
}

// New builds a Controller. Zero-valued config fields fall back to
// DefaultConfig.
func New(cfg Config, deps Deps) *Controller {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.MinFrameTime < 0 {
		cfg.MinFrameTime = 0
	}
	if cfg.MaxQuality <= 0 {
		cfg.MaxQuality = def.MaxQuality
	}
	if cfg.MinQuality <= 0 || cfg.MinQuality > cfg.MaxQuality {
		cfg.MinQuality = min(def.MinQuality, cfg.MaxQuality)
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	deps.Encoder.SetQuality(cfg.MaxQuality)
	return &Controller{
		cfg:      cfg,
		deps:     deps,
		clock:    clk,
		log:      deps.Log.With().Str("component", "stream").Logger(),
		epoch:    clk.Now(),
		inflight: semaphore.NewWeighted(1),
	}
}

// Start begins ticking. Calling Start on a running controller does nothing.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.running = true
	c.cancel = cancel
	c.done = make(chan struct{})
	c.ticker = c.clock.NewTicker(c.cfg.Interval)
	go c.loop(ctx, c.ticker, c.done)
	c.log.Info().Dur("interval", c.cfg.Interval).Msg("stream started")
}

// Stop cancels the ticker. Once Stop returns no frame is emitted, even by
// a step already in flight. Stop is idempotent.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	c.ticker.Stop()
	close(c.done)
	c.cancel()
	c.ticker = nil
	c.log.Info().Msg("stream stopped")
}

// Streaming reports whether the ticker is active.
func (c *Controller) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Controller) loop(ctx context.Context, t *clock.Ticker, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-t.C:
			// Capture and encode run off the ticker goroutine; the single
			// flight guard inside Step drops ticks that overlap.
			go c.tick(ctx)
		}
	}
}

func (c *Controller) tick(ctx context.Context) {
	err := c.Step(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrBusy), errors.Is(err, ErrThrottled), errors.Is(err, ErrStopped):
		c.log.Trace().Err(err).Msg("tick skipped")
	default:
		c.log.Warn().Err(err).Msg("capture step failed")
	}
}

// Step runs one capture-and-emit cycle. It returns nil when a frame was
// handed to the emitter, one of the sentinel errors when the tick was
// skipped, or the capture/encode failure.
func (c *Controller) Step(ctx context.Context) error {
	if !c.inflight.TryAcquire(1) {
		return ErrBusy
	}
	defer c.inflight.Release(1)

	c.mu.Lock()
	running, last := c.running, c.lastEmit
	c.mu.Unlock()
	if !running {
		return ErrStopped
	}
	if !last.IsZero() && c.clock.Now().Sub(last) < c.cfg.MinFrameTime {
		return ErrThrottled
	}

	frame, err := c.produce()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return ErrStopped
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return ErrStopped
	}
	if !c.deps.Out.Connected() {
		return ErrOffline
	}
	if err := c.deps.Out.EmitVolatile(protocol.EventScreenData, frame); err != nil {
		// A dropped frame still counts as an emission attempt for pacing.
		c.log.Debug().Err(err).Int64("timestamp", frame.Timestamp).Msg("frame dropped")
	}
	c.lastEmit = c.clock.Now()
	return nil
}

func (c *Controller) produce() (protocol.Frame, error) {
	x, y := c.deps.Cursor.Position()
	captured := c.clock.Now()

	raw, err := c.deps.Source.Capture()
	if err != nil {
		return protocol.Frame{}, fmt.Errorf("capture frame: %w", err)
	}
	if raw == nil || raw.Bounds().Empty() {
		return protocol.Frame{}, fmt.Errorf("capture frame: empty image")
	}

	img := c.deps.Compositor.Compose(raw, image.Pt(x, y))

	started := c.clock.Now()
	data, err := c.deps.Encoder.Encode(img)
	if err != nil {
		return protocol.Frame{}, fmt.Errorf("encode frame: %w", err)
	}
	c.adapt(c.clock.Now().Sub(started))

	return protocol.Frame{
		Width:     img.Bounds().Dx(),
		Height:    img.Bounds().Dy(),
		Image:     data,
		Timestamp: captured.Sub(c.epoch).Milliseconds(),
	}, nil
}

// adapt lowers quality when encoding cannot keep up with the ticker and
// recovers it gradually once encodes are fast again.
func (c *Controller) adapt(took time.Duration) {
	if !c.cfg.Adaptive {
		return
	}
	enc := c.deps.Encoder
	q := enc.Quality()
	if took > c.cfg.Interval {
		c.fastEncodes = 0
		if next := max(q-qualityStepDown, c.cfg.MinQuality); next != q {
			enc.SetQuality(next)
			c.log.Debug().Int("quality", next).Dur("encode", took).Msg("quality lowered")
		}
		return
	}
	c.fastEncodes++
	if c.fastEncodes >= fastEncodesForUp && q < c.cfg.MaxQuality {
		c.fastEncodes = 0
		next := min(q+qualityStepUp, c.cfg.MaxQuality)
		enc.SetQuality(next)
		c.log.Debug().Int("quality", next).Msg("quality raised")
	}
}
