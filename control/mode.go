package control

import (
	"strings"

	"github.com/pkg/errors"
)

// Mode selects which controller computes actions.
type Mode string

// Available control modes.
const (
	// ModeManual feeds a constant action.
	ModeManual Mode = "manual"
	// ModeNominal steers along the reference path towards the goal.
	ModeNominal Mode = "nominal"
)

// ErrUnknownMode is returned for a mode with no controller.
var ErrUnknownMode = errors.New("unknown control mode")

// ParseMode returns the mode named s, ignoring case.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case ModeManual, ModeNominal:
		return m, nil
	default:
		return "", errors.Wrapf(ErrUnknownMode, "%q", s)
	}
}
