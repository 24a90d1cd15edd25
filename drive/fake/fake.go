// Package fake implements a drive that records what it was told.
package fake

import (
	"context"
	"sync"

	"github.com/golang/geo/r3"
)

// Command is one recorded call. Stop commands carry zero vectors.
type Command struct {
	Linear  r3.Vector
	Angular r3.Vector
	Stop    bool
}

// Drive is a fake drive that keeps every command it receives.
type Drive struct {
	mu       sync.Mutex
	commands []Command
	// OnVelocity, if set, is called with every velocity command, stop included.
	OnVelocity func(linear, angular r3.Vector)
	// Err, if set, is returned from SetVelocity after the command is recorded.
	Err error
}

// SetVelocity records the command.
func (d *Drive) SetVelocity(ctx context.Context, linear, angular r3.Vector, extra map[string]interface{}) error {
	d.mu.Lock()
	d.commands = append(d.commands, Command{Linear: linear, Angular: angular})
	hook, err := d.OnVelocity, d.Err
	d.mu.Unlock()
	if hook != nil {
		hook(linear, angular)
	}
	return err
}

// Stop records a stop.
func (d *Drive) Stop(ctx context.Context, extra map[string]interface{}) error {
	d.mu.Lock()
	d.commands = append(d.commands, Command{Stop: true})
	hook := d.OnVelocity
	d.mu.Unlock()
	if hook != nil {
		hook(r3.Vector{}, r3.Vector{})
	}
	return nil
}

// Commands returns a copy of everything recorded so far.
func (d *Drive) Commands() []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Command(nil), d.commands...)
}

// StopCount is the number of Stop calls.
func (d *Drive) StopCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int
	for _, c := range d.commands {
		if c.Stop {
			n++
		}
	}
	return n
}
