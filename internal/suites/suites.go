// Package suites holds the step suites built into the simulated host.
//
// Each suite is a named constructor of steps. The simulated host pushes the
// selected suite into the harness queue while its plugin loads, exactly as a
// real plugin's entry point would.
package suites

import (
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/hostbench/internal/step"
)

// ErrUnknownSuite is returned by Lookup for an unregistered name.
var ErrUnknownSuite = errors.New("unknown suite")

// Suite is a named set of steps.
type Suite struct {
	Name        string
	Description string
	Steps       func() []step.TestStep
}

var registry = map[string]Suite{}

func register(s Suite) {
	if _, dup := registry[s.Name]; dup {
		panic("suites: duplicate suite " + s.Name)
	}
	registry[s.Name] = s
}

func init() {
	register(Suite{Name: "smoke", Description: "host version and extension state round trip", Steps: smoke})
	register(Suite{Name: "failing", Description: "middle step returns an error", Steps: failing})
	register(Suite{Name: "abort", Description: "middle step panics", Steps: abort})
	register(Suite{Name: "crash", Description: "host process dies during a step", Steps: crash})
	register(Suite{Name: "hang", Description: "a step never returns", Steps: hang})
	register(Suite{Name: "early-exit", Description: "a step terminates the host before the run completes", Steps: earlyExit})
	register(Suite{Name: "empty", Description: "no steps", Steps: func() []step.TestStep { return nil }})
	register(Suite{Name: "capabilities", Description: "projects, tracks, items, takes, transport and extension state", Steps: capabilities})
}

// Lookup returns the suite registered under name.
func Lookup(name string) (Suite, error) {
	s, ok := registry[name]
	if !ok {
		return Suite{}, fmt.Errorf("%w: %q (known: %v)", ErrUnknownSuite, name, Names())
	}
	return s, nil
}

// Names returns the registered suite names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Push pushes every step of the suite into q.
func (s Suite) Push(q *step.Queue) error {
	if err := q.PushAll(s.Steps()...); err != nil {
		return fmt.Errorf("suite %s: %w", s.Name, err)
	}
	return nil
}
