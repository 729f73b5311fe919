// Package display is the viewer window. It draws what the renderer
// reports and turns pointer and keyboard input into relay calls.
package display

import (
	"image"
	"image/color"
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/rs/zerolog"

	"github.com/Alberto0802/RemotePcControlWithPhone/internal/protocol"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/relay"
	"github.com/Alberto0802/RemotePcControlWithPhone/internal/render"
)

// dragThreshold is how far a left press must travel before it becomes a
// joystick gesture instead of a click.
const dragThreshold = 6

var (
	ringColor = color.RGBA{0xff, 0xff, 0xff, 0x80}
	knobColor = color.RGBA{0x1e, 0x90, 0xff, 0xc0}
)

// Window runs the ebiten game loop for one viewer.
type Window struct {
	r     *render.Renderer
	relay *relay.Relay
	title string
	log   zerolog.Logger

	images   [2]*ebiten.Image
	uploaded [2]*image.RGBA
	last     time.Time

	pressed bool
	dragged bool
	origin  image.Point

	done <-chan struct{}
}

// New returns a window over r that sends input through rl. The window
// closes itself when done is closed.
func New(r *render.Renderer, rl *relay.Relay, title string, done <-chan struct{}, log zerolog.Logger) *Window {
	return &Window{
		r:     r,
		relay: rl,
		title: title,
		done:  done,
		log:   log.With().Str("component", "display").Logger(),
	}
}

// Run blocks until the window is closed. It must run on the main goroutine.
func (w *Window) Run() error {
	ebiten.SetWindowSize(1280, 720)
	ebiten.SetWindowTitle(w.title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	// Returning ebiten.Termination from Update makes RunGame return nil.
	return ebiten.RunGame(w)
}

func (w *Window) Update() error {
	select {
	case <-w.done:
		return ebiten.Termination
	default:
	}
	now := time.Now()
	if !w.last.IsZero() {
		w.r.Advance(now.Sub(w.last))
	}
	w.last = now

	w.pointer()
	w.keyboard()
	return nil
}

func (w *Window) Draw(screen *ebiten.Image) {
	if w.r.State() == render.Loading {
		ebitenutil.DebugPrintAt(screen, "Connecting...", 16, 16)
		return
	}
	sw, sh := float64(screen.Bounds().Dx()), float64(screen.Bounds().Dy())
	// Draw the outgoing surface first so the incoming one fades in on top.
	front := w.r.Visible()
	for _, i := range [2]int{front, 1 - front} {
		img := w.surface(i)
		if img == nil {
			continue
		}
		alpha := w.r.Opacity(i)
		if alpha <= 0 {
			continue
		}
		b := img.Bounds()
		fit := render.AspectFit(sw, sh, float64(b.Dx()), float64(b.Dy()))
		op := &ebiten.DrawImageOptions{}
		op.GeoM.Scale(fit.Scale, fit.Scale)
		op.GeoM.Translate(fit.OffsetX, fit.OffsetY)
		op.ColorScale.ScaleAlpha(float32(alpha))
		op.Filter = ebiten.FilterLinear
		screen.DrawImage(img, op)
	}
	if w.relay.Active() {
		w.drawJoystick(screen)
	}
}

func (w *Window) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}

// surface uploads renderer surface i to the GPU when it changed.
func (w *Window) surface(i int) *ebiten.Image {
	src, _ := w.r.Surface(i)
	if src == nil {
		return nil
	}
	if src == w.uploaded[i] {
		return w.images[i]
	}
	b := src.Bounds()
	if w.images[i] == nil || w.images[i].Bounds().Dx() != b.Dx() || w.images[i].Bounds().Dy() != b.Dy() {
		if w.images[i] != nil {
			w.images[i].Deallocate()
		}
		w.images[i] = ebiten.NewImage(b.Dx(), b.Dy())
		w.log.Debug().Int("surface", i).Int("width", b.Dx()).Int("height", b.Dy()).Msg("surface allocated")
	}
	w.images[i].WritePixels(src.Pix)
	w.uploaded[i] = src
	return w.images[i]
}

func (w *Window) drawJoystick(screen *ebiten.Image) {
	cx, cy := float32(w.origin.X), float32(w.origin.Y)
	r := float32(w.relay.Radius())
	kx, ky := w.relay.Knob()
	vector.StrokeCircle(screen, cx, cy, r, 2, ringColor, true)
	vector.DrawFilledCircle(screen, cx+float32(kx), cy+float32(ky), r/3, knobColor, true)
}

// pointer maps the left button to a joystick gesture or a click and the
// right button to a right click.
func (w *Window) pointer() {
	x, y := ebiten.CursorPosition()
	switch {
	case inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft):
		w.pressed = true
		w.dragged = false
		w.origin = image.Pt(x, y)
	case w.pressed && inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft):
		w.pressed = false
		if w.dragged {
			w.relay.End()
		} else {
			w.relay.Click(protocol.ButtonLeft)
		}
	case w.pressed:
		dx, dy := float64(x-w.origin.X), float64(y-w.origin.Y)
		if !w.dragged && math.Hypot(dx, dy) >= dragThreshold {
			w.dragged = true
			w.relay.Begin()
		}
		if w.dragged {
			w.relay.Update(dx, dy)
		}
	}
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonRight) {
		w.relay.Click(protocol.ButtonRight)
	}
}

func (w *Window) keyboard() {
	for _, r := range ebiten.AppendInputChars(nil) {
		w.relay.Key(string(r))
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		w.relay.Key("Backspace")
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) || inpututil.IsKeyJustPressed(ebiten.KeyNumpadEnter) {
		w.relay.Enter()
	}
}
