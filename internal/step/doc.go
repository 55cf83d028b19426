// Package step holds the in-host queue of named test steps.
//
// A Queue lives for the whole host process. It is written only during the
// setup phase (plugin load), then frozen when the main loop starts driving
// the runner; from then on it is read-only.
//
// # Thread Confinement
//
// The host has exactly one main-loop thread and every Queue method must be
// called from it. The queue holds no lock: confinement is structural, the
// plugin owns the only Queue and the runner is its only consumer.
//
// # Usage
//
//	q := step.NewQueue(host.Version())
//	_ = q.Push(step.New("init", func(c *step.Context) error {
//	    return nil
//	}))
//	q.Freeze()
package step
