package input

// Modifier names understood by Injector.Tap.
const ModShift = "shift"

// Cursor reports the host pointer position in screen pixels.
type Cursor interface {
	Position() (x, y int)
}

// Injector applies synthetic pointer and keyboard input on the host.
type Injector interface {
	Cursor
	MoveTo(x, y int)
	Click(button string)
	Tap(key string, modifiers ...string)
}
