package stream

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alberto0802/RemotePcControlWithPhone/internal/capture"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/clock"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/compositor"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/encoder"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/protocol"
)

type recordingEmitter struct {
	mu      sync.Mutex
	offline bool
	frames  []protocol.Frame
	times   []time.Time
	clock   clock.Clock
}

func (r *recordingEmitter) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.offline
}

func (r *recordingEmitter) EmitVolatile(event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event != protocol.EventScreenData {
		return errors.New("unexpected event " + event)
	}
	r.frames = append(r.frames, payload.(protocol.Frame))
	r.times = append(r.times, r.clock.Now())
	return nil
}

func (r *recordingEmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

type fixedCursor struct{ x, y int }

func (c fixedCursor) Position() (int, int) { return c.x, c.y }

// stubEncoder returns fixed bytes and optionally advances the fake clock
// to simulate slow encodes.
type stubEncoder struct {
	quality atomic.Int32
	clk     *clock.Fake
	cost    time.Duration
}

func (s *stubEncoder) Encode(image.Image) ([]byte, error) {
	if s.cost > 0 {
		s.clk.Advance(s.cost)
	}
	return []byte{0xff, 0xd8}, nil
}
func (s *stubEncoder) SetQuality(q int) { s.quality.Store(int32(q)) }
func (s *stubEncoder) Quality() int     { return int(s.quality.Load()) }

var _ encoder.Encoder = (*stubEncoder)(nil)

func solidSource(w, h int) capture.Source {
	return capture.SourceFunc(func() (*image.RGBA, error) {
		return image.NewRGBA(image.Rect(0, 0, w, h)), nil
	})
}

type harness struct {
	clk  *clock.Fake
	out  *recordingEmitter
	enc  *stubEncoder
	ctrl *Controller
}

func newHarness(t *testing.T, cfg Config, src capture.Source) *harness {
	t.Helper()
	clk := clock.NewFake(time.Unix(1000, 0))
	out := &recordingEmitter{clock: clk}
	enc := &stubEncoder{clk: clk}
	ctrl := New(cfg, Deps{
		Source:     src,
		Cursor:     fixedCursor{10, 10},
		Compositor: compositor.New(1280, nil),
		Encoder:    enc,
		Out:        out,
		Clock:      clk,
		Log:        zerolog.Nop(),
	})
	return &harness{clk: clk, out: out, enc: enc, ctrl: ctrl}
}

// arm marks the controller as streaming without starting its ticker so a
// test can drive Step by hand.
func (h *harness) arm() {
	h.ctrl.mu.Lock()
	h.ctrl.running = true
	h.ctrl.mu.Unlock()
}

func TestStepRequiresStart(t *testing.T) {
	h := newHarness(t, DefaultConfig(), solidSource(64, 32))

	assert.ErrorIs(t, h.ctrl.Step(context.Background()), ErrStopped)
	assert.Zero(t, h.out.count())
}

func TestStepEmitsFrame(t *testing.T) {
	h := newHarness(t, DefaultConfig(), solidSource(2560, 1440))
	h.ctrl.Start()
	defer h.ctrl.Stop()

	h.clk.Advance(5 * time.Millisecond)
	require.NoError(t, h.ctrl.Step(context.Background()))

	require.Equal(t, 1, h.out.count())
	f := h.out.frames[0]
	assert.Equal(t, 1280, f.Width)
	assert.Equal(t, 720, f.Height)
	assert.Equal(t, int64(5), f.Timestamp)
	assert.NotEmpty(t, f.Image)
}

func TestThrottlingKeepsMinimumFrameGap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinFrameTime = 30 * time.Millisecond
	h := newHarness(t, cfg, solidSource(64, 32))
	h.arm()

	ctx := context.Background()
	var skipped int
	// Steps every 7ms: roughly one in five may emit.
	for i := 0; i < 60; i++ {
		if err := h.ctrl.Step(ctx); err != nil {
			require.ErrorIs(t, err, ErrThrottled)
			skipped++
		}
		h.clk.Advance(7 * time.Millisecond)
	}

	require.Greater(t, h.out.count(), 1)
	assert.Positive(t, skipped)
	for i := 1; i < len(h.out.times); i++ {
		gap := h.out.times[i].Sub(h.out.times[i-1])
		assert.GreaterOrEqual(t, gap, cfg.MinFrameTime, "emissions %d and %d", i-1, i)
	}
}

func TestSingleFlightSkipsConcurrentStep(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var captures atomic.Int32
	src := capture.SourceFunc(func() (*image.RGBA, error) {
		if captures.Add(1) == 1 {
			close(entered)
			<-release
		}
		return image.NewRGBA(image.Rect(0, 0, 8, 8)), nil
	})
	h := newHarness(t, DefaultConfig(), src)
	h.ctrl.Start()
	defer h.ctrl.Stop()

	firstDone := make(chan error, 1)
	go func() { firstDone <- h.ctrl.Step(context.Background()) }()
	<-entered

	assert.ErrorIs(t, h.ctrl.Step(context.Background()), ErrBusy)
	assert.Equal(t, int32(1), captures.Load())

	close(release)
	require.NoError(t, <-firstDone)
	assert.Equal(t, 1, h.out.count())
}

func TestCaptureFailureDoesNotWedgeLoop(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	src := capture.SourceFunc(func() (*image.RGBA, error) {
		if fail.Load() {
			return nil, errors.New("display asleep")
		}
		return image.NewRGBA(image.Rect(0, 0, 8, 8)), nil
	})
	h := newHarness(t, DefaultConfig(), src)
	h.ctrl.Start()
	defer h.ctrl.Stop()

	err := h.ctrl.Step(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "display asleep")

	fail.Store(false)
	require.NoError(t, h.ctrl.Step(context.Background()))
	assert.Equal(t, 1, h.out.count())
}

func TestStepSkipsWhenConnectionClosed(t *testing.T) {
	h := newHarness(t, DefaultConfig(), solidSource(8, 8))
	h.ctrl.Start()
	defer h.ctrl.Stop()
	h.out.offline = true

	assert.ErrorIs(t, h.ctrl.Step(context.Background()), ErrOffline)
	assert.Zero(t, h.out.count())
}

func TestStartTwiceKeepsOneTicker(t *testing.T) {
	h := newHarness(t, DefaultConfig(), solidSource(8, 8))

	h.ctrl.Start()
	h.ctrl.Start()
	assert.Equal(t, 1, h.clk.Tickers())

	h.ctrl.Stop()
	h.ctrl.Stop()
	assert.Equal(t, 0, h.clk.Tickers())
	assert.False(t, h.ctrl.Streaming())
}

func TestTickerDrivesEmission(t *testing.T) {
	h := newHarness(t, DefaultConfig(), solidSource(8, 8))
	h.ctrl.Start()
	defer h.ctrl.Stop()

	h.clk.Advance(33 * time.Millisecond)
	require.Eventually(t, func() bool { return h.out.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestCleanStop(t *testing.T) {
	var captures atomic.Int32
	src := capture.SourceFunc(func() (*image.RGBA, error) {
		captures.Add(1)
		return image.NewRGBA(image.Rect(0, 0, 8, 8)), nil
	})
	cfg := DefaultConfig()
	h := newHarness(t, cfg, src)
	h.ctrl.Start()

	h.clk.Advance(cfg.Interval)
	require.Eventually(t, func() bool { return h.out.count() == 1 }, time.Second, 5*time.Millisecond)

	h.ctrl.Stop()
	before := captures.Load()
	for i := 0; i < 5; i++ {
		h.clk.Advance(cfg.Interval)
	}
	assert.Never(t, func() bool { return captures.Load() != before }, 100*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, 1, h.out.count())
	assert.Equal(t, 0, h.clk.Tickers())
}

func TestStopDuringStepSuppressesEmission(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	src := capture.SourceFunc(func() (*image.RGBA, error) {
		close(entered)
		<-release
		return image.NewRGBA(image.Rect(0, 0, 8, 8)), nil
	})
	h := newHarness(t, DefaultConfig(), src)
	h.ctrl.Start()

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Step(context.Background()) }()
	<-entered
	h.ctrl.Stop()
	close(release)

	assert.ErrorIs(t, <-done, ErrStopped)
	assert.Zero(t, h.out.count())
}

func TestAdaptiveQuality(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxQuality = 70
	cfg.MinQuality = 50
	cfg.MinFrameTime = 0
	h := newHarness(t, cfg, solidSource(8, 8))
	h.arm()
	require.Equal(t, 70, h.enc.Quality())

	ctx := context.Background()
	h.enc.cost = 2 * cfg.Interval
	require.NoError(t, h.ctrl.Step(ctx))
	assert.Equal(t, 60, h.enc.Quality())
	require.NoError(t, h.ctrl.Step(ctx))
	require.NoError(t, h.ctrl.Step(ctx))
	assert.Equal(t, 50, h.enc.Quality(), "quality stops at the floor")

	h.enc.cost = 0
	for i := 0; i < fastEncodesForUp; i++ {
		require.NoError(t, h.ctrl.Step(ctx))
	}
	assert.Equal(t, 55, h.enc.Quality())
}
