package suites

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/hostbench/internal/step"
)

const benchSection = "hostbench"

func smoke() []step.TestStep {
	return []step.TestStep{
		step.New("init", func(c *step.Context) error {
			if c.Host.Version() == "" {
				return errors.New("host reported an empty version")
			}
			c.Logger.Info("host ready", "version", c.Host.Version())
			return nil
		}),
		step.New("write ext state", func(c *step.Context) error {
			return c.Host.ExtState().Set(benchSection, "smoke", c.RunID, false)
		}),
		step.New("read ext state", func(c *step.Context) error {
			got, ok := c.Host.ExtState().Get(benchSection, "smoke")
			if !ok {
				return errors.New("value written by previous step is missing")
			}
			if got != c.RunID {
				return fmt.Errorf("read %q, want %q", got, c.RunID)
			}
			return nil
		}),
	}
}

func failing() []step.TestStep {
	return []step.TestStep{
		step.New("a", func(*step.Context) error { return nil }),
		step.New("b", func(*step.Context) error { return errors.New("boom") }),
		step.New("c", func(*step.Context) error { return nil }),
	}
}

func abort() []step.TestStep {
	return []step.TestStep{
		step.New("before", func(*step.Context) error { return nil }),
		step.New("nil map", func(*step.Context) error {
			var m map[string]int
			m["x"] = 1
			return nil
		}),
		step.New("after", func(*step.Context) error { return nil }),
	}
}

// crash kills the process from a goroutine the runner cannot recover.
func crash() []step.TestStep {
	return []step.TestStep{
		step.New("before", func(*step.Context) error { return nil }),
		step.New("crash", func(*step.Context) error {
			go func() {
				panic("simulated host crash")
			}()
			time.Sleep(time.Hour)
			return nil
		}),
		step.New("unreachable", func(*step.Context) error { return nil }),
	}
}

func hang() []step.TestStep {
	return []step.TestStep{
		step.New("before", func(*step.Context) error { return nil }),
		step.New("hang", func(*step.Context) error {
			for {
				time.Sleep(time.Hour)
			}
		}),
	}
}

func earlyExit() []step.TestStep {
	return []step.TestStep{
		step.New("before", func(*step.Context) error { return nil }),
		step.New("terminate", func(c *step.Context) error {
			c.Host.Terminate(0)
			return nil
		}),
		step.New("never runs", func(*step.Context) error { return nil }),
	}
}
