package input

import (
	"unicode"
	"unicode/utf8"

	"github.com/Alberto0802/RemotePcControlWithPhone/internal/protocol"
)

// Move applies a relative delta once from the current cursor position.
// The viewer resends the held delta every relay tick, so a held gesture
// moves the cursor at a velocity proportional to its offset.
func Move(inj Injector, m protocol.MouseMove) bool {
	if m.IsZero() {
		return false
	}
	x, y := inj.Position()
	inj.MoveTo(x+m.DX, y+m.DY)
	return true
}

// Click presses the named button. Unknown or empty buttons are ignored.
func Click(inj Injector, c protocol.MouseClick) bool {
	switch c.Button {
	case protocol.ButtonLeft, protocol.ButtonRight:
		inj.Click(c.Button)
		return true
	default:
		return false
	}
}

// Key taps a symbolic key or a single character. An uppercase letter is
// tapped as its lowercase form with shift held.
func Key(inj Injector, k protocol.TypeKey) bool {
	switch k.Key {
	case protocol.KeyBackspace, protocol.KeyEnter:
		inj.Tap(k.Key)
		return true
	}
	r, size := utf8.DecodeRuneInString(k.Key)
	if r == utf8.RuneError || size != len(k.Key) {
		return false
	}
	if unicode.IsUpper(r) && unicode.IsLetter(r) {
		inj.Tap(string(unicode.ToLower(r)), ModShift)
		return true
	}
	inj.Tap(k.Key)
	return true
}
