// Package robot implements input.Injector on top of robotgo.
package robot

import (
	"github.com/go-vgo/robotgo"
	"github.com/rs/zerolog"
)

// Injector injects input and reads the cursor through robotgo.
// It satisfies input.Injector.
type Injector struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Injector {
	return &Injector{log: log.With().Str("component", "injector").Logger()}
}

func (r *Injector) Position() (int, int) {
	return robotgo.GetMousePos()
}

func (r *Injector) MoveTo(x, y int) {
	robotgo.Move(x, y)
}

func (r *Injector) Click(button string) {
	robotgo.Click(button)
}

func (r *Injector) Tap(key string, modifiers ...string) {
	var err error
	if len(modifiers) > 0 {
		err = robotgo.KeyTap(key, modifiers)
	} else {
		err = robotgo.KeyTap(key)
	}
	if err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("key tap failed")
	}
}
