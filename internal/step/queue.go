package step

import (
	"errors"
	"fmt"
	"sync"
)

// ErrSetupClosed is returned by Push once the queue has been frozen.
var ErrSetupClosed = errors.New("step queue: setup closed")

// Queue is the ordered, append-only list of steps owned by the plugin.
type Queue struct {
	hostVersion string
	steps       []TestStep
	skipped     []string
	frozen      bool
}

// NewQueue creates an empty queue for a host running hostVersion.
// Steps whose Restriction does not admit hostVersion are dropped at push
// time so they never occupy an index.
func NewQueue(hostVersion string) *Queue {
	return &Queue{
		hostVersion: hostVersion,
		steps:       make([]TestStep, 0, 16),
	}
}

// Push appends a step to the end of the queue.
//
// Returns ErrSetupClosed after Freeze, ErrInvalidStep for a nameless or
// actionless step. A step filtered out by its version restriction is not an
// error; it is listed by Skipped.
func (q *Queue) Push(s TestStep) error {
	if q.frozen {
		return fmt.Errorf("push %q: %w", s.Name, ErrSetupClosed)
	}
	s, err := s.normalize()
	if err != nil {
		return err
	}
	if !s.Restriction.Allows(q.hostVersion) {
		q.skipped = append(q.skipped, s.Name)
		return nil
	}
	q.steps = append(q.steps, s)
	return nil
}

// PushAll pushes steps in order, stopping at the first error.
func (q *Queue) PushAll(steps ...TestStep) error {
	for _, s := range steps {
		if err := q.Push(s); err != nil {
			return err
		}
	}
	return nil
}

// Freeze closes the setup phase. Idempotent.
func (q *Queue) Freeze() {
	q.frozen = true
}

// Frozen reports whether the setup phase is over.
func (q *Queue) Frozen() bool {
	return q.frozen
}

// Len returns the number of queued steps.
func (q *Queue) Len() int {
	return len(q.steps)
}

// At returns the step at index i.
func (q *Queue) At(i int) TestStep {
	return q.steps[i]
}

// Names returns the queued step names in order.
func (q *Queue) Names() []string {
	names := make([]string, len(q.steps))
	for i, s := range q.steps {
		names[i] = s.Name
	}
	return names
}

// Skipped returns names of steps dropped by their version restriction.
func (q *Queue) Skipped() []string {
	out := make([]string, len(q.skipped))
	copy(out, q.skipped)
	return out
}

var (
	installOnce sync.Once
	global      *Queue
)

// Install makes q the process-wide queue. Only the first call has an
// effect; it returns the installed queue.
func Install(q *Queue) *Queue {
	installOnce.Do(func() {
		global = q
	})
	return global
}

// Global returns the process-wide queue.
//
// Panics if Install has not been called.
func Global() *Queue {
	if global == nil {
		panic("step: Install must be called before Global")
	}
	return global
}
