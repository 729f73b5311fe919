// Package relay turns viewer gestures into input events for the host. A
// held joystick gesture is resent at a fixed interval until released.
package relay

import (
	"math"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/Alberto0802/RemotePcControlWithPhone/internal/clock"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/protocol"
)

// Config holds the joystick constants.
type Config struct {
	// Interval is how often a held delta is resent.
	Interval time.Duration
	// Radius caps the knob offset in screen points.
	Radius float64
	// Sensitivity scales the clamped offset into a cursor delta.
	Sensitivity float64
}

// DefaultConfig matches the phone joystick: 50ms, radius 50, 0.7.
func DefaultConfig() Config {
	return Config{
		Interval:    50 * time.Millisecond,
		Radius:      50,
		Sensitivity: 0.7,
	}
}

// Emitter sends reliable events to the host.
type Emitter interface {
	Emit(event string, payload any) error
}

// Relay owns the joystick state of one viewer.
type Relay struct {
	cfg   Config
	out   Emitter
	clock clock.Clock
	log   zerolog.Logger

	mu     sync.Mutex
	active bool
	ticker *clock.Ticker
	done   chan struct{}
	knobX  float64
	knobY  float64
	delta  protocol.MouseMove
}

// New returns an idle Relay. A nil clock uses the wall clock.
func New(cfg Config, out Emitter, clk clock.Clock, log zerolog.Logger) *Relay {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Radius <= 0 {
		cfg.Radius = def.Radius
	}
	if cfg.Sensitivity <= 0 {
		cfg.Sensitivity = def.Sensitivity
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Relay{
		cfg:   cfg,
		out:   out,
		clock: clk,
		log:   log.With().Str("component", "relay").Logger(),
	}
}

// Clamp limits (dx, dy) to a circle of radius r, keeping its direction.
func Clamp(dx, dy, r float64) (float64, float64) {
	d := math.Hypot(dx, dy)
	if d <= r || d == 0 {
		return dx, dy
	}
	k := r / d
	return dx * k, dy * k
}

// Begin starts resending the current delta. Begin on an active relay does
// nothing.
func (r *Relay) Begin() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return
	}
	r.active = true
	r.done = make(chan struct{})
	r.ticker = r.clock.NewTicker(r.cfg.Interval)
	go r.loop(r.ticker, r.done)
}

// Update sets the knob offset from the gesture origin.
func (r *Relay) Update(rawDX, rawDY float64) {
	x, y := Clamp(rawDX, rawDY, r.cfg.Radius)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.knobX, r.knobY = x, y
	r.delta = protocol.MouseMove{
		DX: int(math.Round(x * r.cfg.Sensitivity)),
		DY: int(math.Round(y * r.cfg.Sensitivity)),
	}
}

// End stops the resend loop, recenters the knob and sends a single zero
// move. End on an idle relay does nothing.
func (r *Relay) End() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	r.active = false
	r.ticker.Stop()
	close(r.done)
	r.ticker = nil
	r.knobX, r.knobY = 0, 0
	r.delta = protocol.MouseMove{}
	r.emit(protocol.EventMouseMove, protocol.MouseMove{})
}

// Active reports whether a gesture is held.
func (r *Relay) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Delta is the move sent on each tick.
func (r *Relay) Delta() protocol.MouseMove {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.delta
}

// Knob is the clamped offset to draw the joystick knob at.
func (r *Relay) Knob() (x, y float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.knobX, r.knobY
}

// Radius is the joystick radius in screen points.
func (r *Relay) Radius() float64 { return r.cfg.Radius }

// Click sends a mouse-click for button.
func (r *Relay) Click(button string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emit(protocol.EventMouseClick, protocol.MouseClick{Button: button})
}

// Key forwards a typed key. Backspace maps to its symbolic name; any other
// multi-character key is ignored.
func (r *Relay) Key(key string) bool {
	var out string
	switch {
	case key == "Backspace":
		out = protocol.KeyBackspace
	case utf8.RuneCountInString(key) == 1:
		out = key
	default:
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emit(protocol.EventTypeKey, protocol.TypeKey{Key: out})
	return true
}

// Enter sends the enter key.
func (r *Relay) Enter() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emit(protocol.EventTypeKey, protocol.TypeKey{Key: protocol.KeyEnter})
}

func (r *Relay) loop(t *clock.Ticker, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-t.C:
			r.tick()
		}
	}
}

func (r *Relay) tick() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active || r.delta.IsZero() {
		return
	}
	r.emit(protocol.EventMouseMove, r.delta)
}

// emit runs with mu held so a tick can never follow End's zero move.
func (r *Relay) emit(event string, payload any) {
	if err := r.out.Emit(event, payload); err != nil {
		r.log.Debug().Err(err).Str("event", event).Msg("input not sent")
	}
}
