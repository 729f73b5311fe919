package input

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Alberto0802/RemotePcControlWithPhone/internal/protocol"
)

type tap struct {
	key  string
	mods []string
}

type fakeInjector struct {
	x, y   int
	moves  [][2]int
	clicks []string
	taps   []tap
}

func (f *fakeInjector) Position() (int, int) { return f.x, f.y }

func (f *fakeInjector) MoveTo(x, y int) {
	f.x, f.y = x, y
	f.moves = append(f.moves, [2]int{x, y})
}

func (f *fakeInjector) Click(button string) { f.clicks = append(f.clicks, button) }

func (f *fakeInjector) Tap(key string, modifiers ...string) {
	f.taps = append(f.taps, tap{key: key, mods: modifiers})
}

func TestKeyCaseMapping(t *testing.T) {
	inj := &fakeInjector{}

	assert.True(t, Key(inj, protocol.TypeKey{Key: "A"}))
	assert.True(t, Key(inj, protocol.TypeKey{Key: "a"}))

	assert.Equal(t, []tap{
		{key: "a", mods: []string{ModShift}},
		{key: "a"},
	}, inj.taps)
}

func TestKeySymbolicAndPunctuation(t *testing.T) {
	inj := &fakeInjector{}

	Key(inj, protocol.TypeKey{Key: protocol.KeyBackspace})
	Key(inj, protocol.TypeKey{Key: protocol.KeyEnter})
	Key(inj, protocol.TypeKey{Key: "7"})
	Key(inj, protocol.TypeKey{Key: "!"})

	assert.Equal(t, []tap{{key: "backspace"}, {key: "enter"}, {key: "7"}, {key: "!"}}, inj.taps)
}

func TestKeyIgnoresMalformed(t *testing.T) {
	inj := &fakeInjector{}

	assert.False(t, Key(inj, protocol.TypeKey{}))
	assert.False(t, Key(inj, protocol.TypeKey{Key: "ab"}))
	assert.False(t, Key(inj, protocol.TypeKey{Key: "\xff"}))
	assert.Empty(t, inj.taps)
}

func TestMoveAppliesDeltaFromCurrentPosition(t *testing.T) {
	inj := &fakeInjector{x: 100, y: 100}

	assert.True(t, Move(inj, protocol.MouseMove{DX: 7, DY: -3}))
	assert.True(t, Move(inj, protocol.MouseMove{DX: 7, DY: -3}))
	assert.False(t, Move(inj, protocol.MouseMove{}))

	assert.Equal(t, [][2]int{{107, 97}, {114, 94}}, inj.moves)
}

func TestClickIgnoresUnknownButton(t *testing.T) {
	inj := &fakeInjector{}

	assert.True(t, Click(inj, protocol.MouseClick{Button: "left"}))
	assert.True(t, Click(inj, protocol.MouseClick{Button: "right"}))
	assert.False(t, Click(inj, protocol.MouseClick{}))
	assert.False(t, Click(inj, protocol.MouseClick{Button: "middle"}))

	assert.Equal(t, []string{"left", "right"}, inj.clicks)
}
