package relay

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alberto0802/RemotePcControlWithPhone/internal/clock"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/protocol"
)

type sent struct {
	event   string
	payload any
}

type recorder struct {
	mu   sync.Mutex
	msgs []sent
	err  error
}

func (r *recorder) Emit(event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, sent{event, payload})
	return r.err
}

func (r *recorder) moves() []protocol.MouseMove {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []protocol.MouseMove
	for _, m := range r.msgs {
		if m.event == protocol.EventMouseMove {
			out = append(out, m.payload.(protocol.MouseMove))
		}
	}
	return out
}

func (r *recorder) all() []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sent(nil), r.msgs...)
}

func newRelay() (*Relay, *recorder, *clock.Fake) {
	clk := clock.NewFake(time.Unix(0, 0))
	out := &recorder{}
	return New(DefaultConfig(), out, clk, zerolog.Nop()), out, clk
}

func TestClamp(t *testing.T) {
	x, y := Clamp(500, 0, 50)
	assert.Equal(t, 50.0, x)
	assert.Equal(t, 0.0, y)

	x, y = Clamp(30, -40, 50)
	assert.Equal(t, 30.0, x)
	assert.Equal(t, -40.0, y)

	x, y = Clamp(-60, 80, 50)
	assert.InDelta(t, -30, x, 1e-9)
	assert.InDelta(t, 40, y, 1e-9)

	x, y = Clamp(0, 0, 50)
	assert.Zero(t, x)
	assert.Zero(t, y)
}

func TestUpdateClampsAndScales(t *testing.T) {
	r, _, _ := newRelay()

	r.Update(500, 0)
	assert.Equal(t, protocol.MouseMove{DX: 35, DY: 0}, r.Delta())
	kx, ky := r.Knob()
	assert.Equal(t, 50.0, kx)
	assert.Zero(t, ky)

	r.Update(-10, 3)
	assert.Equal(t, protocol.MouseMove{DX: -7, DY: 2}, r.Delta())
}

func TestHeldGestureRepeats(t *testing.T) {
	r, out, clk := newRelay()
	r.Begin()
	defer r.End()
	r.Update(30, 0)

	for i := 0; i < 3; i++ {
		clk.Advance(DefaultConfig().Interval)
		want := i + 1
		require.Eventually(t, func() bool { return len(out.moves()) == want }, time.Second, 5*time.Millisecond)
	}
	for _, m := range out.moves() {
		assert.Equal(t, protocol.MouseMove{DX: 21, DY: 0}, m)
	}
}

func TestZeroDeltaIsNotSent(t *testing.T) {
	r, out, clk := newRelay()
	r.Begin()
	defer r.End()

	clk.Advance(DefaultConfig().Interval)
	assert.Never(t, func() bool { return len(out.moves()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestReleaseResetsMotion(t *testing.T) {
	r, out, clk := newRelay()
	r.Begin()
	r.Update(0, -50)
	clk.Advance(DefaultConfig().Interval)
	require.Eventually(t, func() bool { return len(out.moves()) == 1 }, time.Second, 5*time.Millisecond)

	r.End()
	moves := out.moves()
	require.Len(t, moves, 2)
	assert.Equal(t, protocol.MouseMove{DX: 0, DY: -35}, moves[0])
	assert.Equal(t, protocol.MouseMove{}, moves[1])
	assert.False(t, r.Active())
	assert.Zero(t, clk.Tickers())

	for i := 0; i < 5; i++ {
		clk.Advance(DefaultConfig().Interval)
	}
	assert.Never(t, func() bool { return len(out.moves()) != 2 }, 100*time.Millisecond, 10*time.Millisecond)

	r.End()
	assert.Len(t, out.moves(), 2, "End while idle sends nothing")
}

func TestBeginTwiceKeepsOneTicker(t *testing.T) {
	r, _, clk := newRelay()
	r.Begin()
	r.Begin()
	assert.Equal(t, 1, clk.Tickers())
	r.End()
	assert.Zero(t, clk.Tickers())
}

func TestClickKeyEnter(t *testing.T) {
	r, out, _ := newRelay()

	r.Click(protocol.ButtonLeft)
	assert.True(t, r.Key("Backspace"))
	assert.True(t, r.Key("x"))
	assert.True(t, r.Key("ñ"))
	assert.False(t, r.Key("Shift"))
	assert.False(t, r.Key(""))
	r.Enter()

	assert.Equal(t, []sent{
		{protocol.EventMouseClick, protocol.MouseClick{Button: "left"}},
		{protocol.EventTypeKey, protocol.TypeKey{Key: "backspace"}},
		{protocol.EventTypeKey, protocol.TypeKey{Key: "x"}},
		{protocol.EventTypeKey, protocol.TypeKey{Key: "ñ"}},
		{protocol.EventTypeKey, protocol.TypeKey{Key: "enter"}},
	}, out.all())
}

func TestEmitFailureIsNotFatal(t *testing.T) {
	r, out, _ := newRelay()
	out.err = errors.New("closed")

	r.Click(protocol.ButtonRight)
	assert.Len(t, out.all(), 1)
}
