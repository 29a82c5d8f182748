// Package jobs provides the single-worker task runner that executes one
// conversation turn at a time off the caller's goroutine.
package jobs

import (
	"context"
	"log"
)

// Task is one unit of background work. An alias so any plain function
// literal satisfies submitter interfaces declared elsewhere.
type Task = func(ctx context.Context)

// Runner is a dedicated worker fed by an unbuffered submit channel: a task
// is accepted only while the worker is idle, which is the admission control
// for single-flight conversations.
type Runner struct {
	tasks    chan Task
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewRunner creates a new Runner instance
func NewRunner() *Runner {
	return &Runner{
		tasks:    make(chan Task),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the worker loop. It returns when ctx is cancelled or Stop is
// called.
func (r *Runner) Start(ctx context.Context) {
	defer close(r.doneChan)

	for {
		select {
		case <-ctx.Done():
			log.Println("runner stopped: context cancelled")
			return
		case <-r.stopChan:
			log.Println("runner stopped: stop signal received")
			return
		case task := <-r.tasks:
			task(ctx)
		}
	}
}

// TrySubmit hands a task to the worker without blocking. It returns false
// when the worker is busy or not running; the caller treats that as
// backpressure, not an error.
func (r *Runner) TrySubmit(task Task) bool {
	select {
	case r.tasks <- task:
		return true
	default:
		return false
	}
}

// Stop gracefully stops the runner after the in-flight task completes.
func (r *Runner) Stop() {
	close(r.stopChan)
	<-r.doneChan
	log.Println("runner shutdown complete")
}
