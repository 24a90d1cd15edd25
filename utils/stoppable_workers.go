// Package utils holds small concurrency helpers shared by the localization sources and the control loop.
package utils

import (
	"context"
	"sync"

	goutils "go.viam.com/utils"
)

// StoppableWorkers is a group of goroutines sharing one cancellable context. The zero value is not
// usable; construct with NewStoppableWorkers.
type StoppableWorkers struct {
	mu         sync.Mutex
	ctx        context.Context
	cancelFunc func()
	workers    sync.WaitGroup
}

// NewStoppableWorkers starts funcs in separate goroutines whose context derives from parent.
func NewStoppableWorkers(parent context.Context, funcs ...func(context.Context)) *StoppableWorkers {
	ctx, cancel := context.WithCancel(parent)
	sw := &StoppableWorkers{ctx: ctx, cancelFunc: cancel}
	sw.Add(funcs...)
	return sw
}

// Add starts one more goroutine per function and reports whether it did. Nothing is started once
// Stop has been called or the parent context is done.
func (sw *StoppableWorkers) Add(funcs ...func(context.Context)) bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.ctx.Err() != nil {
		return false
	}
	sw.workers.Add(len(funcs))
	for _, f := range funcs {
		goutils.PanicCapturingGo(func() {
			defer sw.workers.Done()
			f(sw.ctx)
		})
	}
	return true
}

// Stop cancels the shared context and waits for every worker to return. Calling it more than once
// is fine.
func (sw *StoppableWorkers) Stop() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.cancelFunc()
	sw.workers.Wait()
}
