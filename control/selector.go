package control

import (
	"github.com/pkg/errors"

	"github.com/rcognita/turtlenav/localization"
)

// Selector dispatches to the controller registered for a mode.
type Selector struct {
	controllers map[Mode]Controller
}

// NewSelector returns an empty selector.
func NewSelector() *Selector {
	return &Selector{controllers: map[Mode]Controller{}}
}

// Register makes c answer for mode, replacing any previous controller.
func (s *Selector) Register(mode Mode, c Controller) *Selector {
	s.controllers[mode] = c
	return s
}

// Has reports whether mode has a controller.
func (s *Selector) Has(mode Mode) bool {
	_, ok := s.controllers[mode]
	return ok
}

// Select computes the action of mode's controller.
func (s *Selector) Select(t float64, state localization.State, mode Mode) (Action, error) {
	c, ok := s.controllers[mode]
	if !ok {
		return Action{}, errors.Wrapf(ErrUnknownMode, "no controller registered for %q", mode)
	}
	a, err := c.Action(t, state)
	if err != nil {
		return Action{}, errors.Wrapf(err, "%s controller", mode)
	}
	return a, nil
}
