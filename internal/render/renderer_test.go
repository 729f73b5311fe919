package render

import (
	"errors"
	"image"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alberto0802/RemotePcControlWithPhone/internal/protocol"
)

type stubDecoder struct{ calls int }

func (d *stubDecoder) Decode(data []byte) (*image.RGBA, error) {
	d.calls++
	if string(data) == "bad" {
		return nil, errors.New("truncated")
	}
	return image.NewRGBA(image.Rect(0, 0, 4, 3)), nil
}

func frame(ts int64) protocol.Frame {
	return protocol.Frame{Width: 4, Height: 3, Image: []byte("ok"), Timestamp: ts}
}

func newRenderer() (*Renderer, *stubDecoder) {
	dec := &stubDecoder{}
	return New(dec, 200*time.Millisecond, zerolog.Nop()), dec
}

// drain advances until no fade is running and the queue is empty.
func drain(r *Renderer) {
	for i := 0; i < 100 && (r.Pending() > 0 || r.fading); i++ {
		r.Advance(100 * time.Millisecond)
	}
}

func TestMonotonicDisplay(t *testing.T) {
	r, _ := newRenderer()

	var accepted []bool
	for _, ts := range []int64{100, 80, 150, 90} {
		accepted = append(accepted, r.Push(frame(ts)))
	}
	assert.Equal(t, []bool{true, false, true, false}, accepted)

	drain(r)
	shown, ok := r.Displayed()
	require.True(t, ok)
	assert.Equal(t, int64(150), shown)
	last, _ := r.LastTimestamp()
	assert.Equal(t, int64(150), last)
}

func TestEqualTimestampRejected(t *testing.T) {
	r, _ := newRenderer()
	assert.True(t, r.Push(frame(5)))
	assert.False(t, r.Push(frame(5)))
	assert.True(t, r.Push(frame(6)))
}

func TestFirstFrameLeavesLoading(t *testing.T) {
	r, _ := newRenderer()
	assert.Equal(t, Loading, r.State())
	_, ok := r.LastTimestamp()
	assert.False(t, ok)

	r.Push(frame(0))
	assert.Equal(t, Streaming, r.State())
}

func TestCrossFade(t *testing.T) {
	r, _ := newRenderer()
	r.Push(frame(1))

	r.Advance(50 * time.Millisecond)
	assert.InDelta(t, 0.25, r.Opacity(1), 1e-9)
	assert.InDelta(t, 0.75, r.Opacity(0), 1e-9)
	assert.Equal(t, 0, r.Visible())

	r.Advance(150 * time.Millisecond)
	assert.Equal(t, 1, r.Visible())
	assert.InDelta(t, 1, r.Opacity(1), 1e-9)
	assert.InDelta(t, 0, r.Opacity(0), 1e-9)
	img, ts := r.Surface(1)
	assert.NotNil(t, img)
	assert.Equal(t, int64(1), ts)
}

func TestQueuedFramesShowInOrder(t *testing.T) {
	r, _ := newRenderer()
	for ts := int64(1); ts <= 3; ts++ {
		require.True(t, r.Push(frame(ts)))
	}

	var shown []int64
	for i := 0; i < 3; i++ {
		r.Advance(200 * time.Millisecond)
		ts, ok := r.Displayed()
		require.True(t, ok)
		shown = append(shown, ts)
	}
	assert.Equal(t, []int64{1, 2, 3}, shown)
	assert.Zero(t, r.Pending())
}

func TestSteadyStreamDoesNotBacklog(t *testing.T) {
	r, _ := newRenderer()
	const (
		period = 33 * time.Millisecond
		tick   = 16 * time.Millisecond
		run    = 10 * time.Second
	)

	var next time.Duration
	maxPending := 0
	var maxLag int64
	for now := time.Duration(0); now < run; now += tick {
		for ; next <= now; next += period {
			require.True(t, r.Push(frame(next.Milliseconds())))
		}
		r.Advance(tick)

		maxPending = max(maxPending, r.Pending())
		if now < time.Second {
			continue
		}
		shown, ok := r.Displayed()
		require.True(t, ok)
		newest, _ := r.LastTimestamp()
		maxLag = max(maxLag, newest-shown)
	}
	assert.LessOrEqual(t, maxPending, 8)
	assert.LessOrEqual(t, maxLag, int64(300))
}

func TestDecodeFailureSkipsFrame(t *testing.T) {
	r, dec := newRenderer()
	r.Push(protocol.Frame{Image: []byte("bad"), Timestamp: 1})
	r.Push(frame(2))

	r.Advance(200 * time.Millisecond)
	ts, ok := r.Displayed()
	require.True(t, ok)
	assert.Equal(t, int64(2), ts)
	assert.Equal(t, 2, dec.calls)
}

func TestReset(t *testing.T) {
	r, _ := newRenderer()
	r.Push(frame(100))
	r.Push(frame(200))
	r.Advance(200 * time.Millisecond)

	r.Reset()
	assert.Equal(t, Loading, r.State())
	assert.Zero(t, r.Pending())
	_, ok := r.Displayed()
	assert.False(t, ok)

	// A new connection restarts its clock: low timestamps are accepted again.
	assert.True(t, r.Push(frame(3)))
}

func TestAspectFit(t *testing.T) {
	f := AspectFit(1000, 1000, 1280, 720)
	assert.InDelta(t, 1000.0/1280, f.Scale, 1e-9)
	assert.InDelta(t, 0, f.OffsetX, 1e-9)
	assert.InDelta(t, (1000-720*f.Scale)/2, f.OffsetY, 1e-9)

	assert.Equal(t, Fit{Scale: 1}, AspectFit(100, 100, 0, 0))
}
