// Package render holds the viewer's frame presentation state: which frame
// is visible, which is fading in, and the queue of accepted frames. It has
// no graphics dependency; the display draws what it reports.
package render

import (
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Alberto0802/RemotePcControlWithPhone/internal/decoder"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/protocol"
)

// State is the viewer screen state.
type State int

const (
	// Loading shows a placeholder until the first frame arrives.
	Loading State = iota
	Streaming
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Streaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// DefaultFade is the cross-fade duration between two frames.
const DefaultFade = 200 * time.Millisecond

// Renderer double-buffers decoded frames. Accepted frames are shown in
// arrival order; each one fades in over the previous one.
type Renderer struct {
	dec  decoder.Decoder
	fade time.Duration
	log  zerolog.Logger

	mu       sync.Mutex
	state    State
	hasLast  bool
	last     int64
	queue    []protocol.Frame
	surfaces [2]*image.RGBA
	stamps   [2]int64
	opacity  [2]float64
	visible  int
	fading   bool
	elapsed  time.Duration
}

// New returns a Renderer in the Loading state. fade <= 0 uses DefaultFade.
func New(dec decoder.Decoder, fade time.Duration, log zerolog.Logger) *Renderer {
	if fade <= 0 {
		fade = DefaultFade
	}
	r := &Renderer{
		dec:  dec,
		fade: fade,
		log:  log.With().Str("component", "render").Logger(),
	}
	r.resetLocked()
	return r
}

// Push queues f if its timestamp is newer than every frame accepted so far.
// It reports whether f was accepted. Accepted frames are never dropped.
func (r *Renderer) Push(f protocol.Frame) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hasLast && f.Timestamp <= r.last {
		r.log.Trace().Int64("timestamp", f.Timestamp).Int64("last", r.last).Msg("stale frame")
		return false
	}
	r.hasLast = true
	r.last = f.Timestamp
	r.queue = append(r.queue, f)
	if r.state == Loading {
		r.state = Streaming
		r.log.Debug().Int64("timestamp", f.Timestamp).Msg("first frame")
	}
	return true
}

// Advance moves the current fade forward by dt, swapping surfaces when it
// completes and preparing the next queued frame. Each frame still waiting
// in the queue speeds the fade up, so display keeps pace with arrivals.
func (r *Renderer) Advance(dt time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.fading {
		r.prepareLocked()
		if !r.fading {
			return
		}
	}
	r.elapsed += dt * time.Duration(1+len(r.queue))
	p := min(float64(r.elapsed)/float64(r.fade), 1)
	hidden := 1 - r.visible
	r.opacity[hidden] = p
	r.opacity[r.visible] = 1 - p
	if p < 1 {
		return
	}
	r.visible = hidden
	r.fading = false
	r.prepareLocked()
}

// prepareLocked decodes the head of the queue into the hidden surface and
// starts its fade. Frames that fail to decode are skipped.
func (r *Renderer) prepareLocked() {
	for len(r.queue) > 0 {
		f := r.queue[0]
		r.queue[0] = protocol.Frame{}
		r.queue = r.queue[1:]
		img, err := r.dec.Decode(f.Image)
		if err != nil {
			r.log.Warn().Err(err).Int64("timestamp", f.Timestamp).Msg("skipping undecodable frame")
			continue
		}
		hidden := 1 - r.visible
		r.surfaces[hidden] = img
		r.stamps[hidden] = f.Timestamp
		r.opacity[hidden] = 0
		r.fading = true
		r.elapsed = 0
		return
	}
}

// Reset returns to Loading and forgets every frame. Call it when a new
// connection is established.
func (r *Renderer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetLocked()
}

func (r *Renderer) resetLocked() {
	r.state = Loading
	r.hasLast = false
	r.last = 0
	r.queue = nil
	r.surfaces = [2]*image.RGBA{}
	r.stamps = [2]int64{}
	r.opacity = [2]float64{1, 0}
	r.visible = 0
	r.fading = false
	r.elapsed = 0
}

func (r *Renderer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// LastTimestamp is the newest accepted timestamp, or false before any.
func (r *Renderer) LastTimestamp() (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.hasLast
}

// Pending is the number of accepted frames not yet prepared.
func (r *Renderer) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Visible is the index of the fully shown surface.
func (r *Renderer) Visible() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visible
}

// Surface returns surface i (0 or 1) and its frame timestamp. The image is
// nil until a frame has been prepared into it.
func (r *Renderer) Surface(i int) (*image.RGBA, int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.surfaces[i&1], r.stamps[i&1]
}

// Opacity returns the current alpha of surface i in [0, 1].
func (r *Renderer) Opacity(i int) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opacity[i&1]
}

// Displayed is the timestamp of the visible surface, or false while
// nothing has finished fading in.
func (r *Renderer) Displayed() (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.surfaces[r.visible] == nil {
		return 0, false
	}
	return r.stamps[r.visible], true
}
