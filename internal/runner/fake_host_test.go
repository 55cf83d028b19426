package runner

import (
	"fmt"
	"strings"

	"github.com/roach88/hostbench/internal/hostapi"
)

// fakeHost is a minimal single-threaded host for runner tests.
type fakeHost struct {
	version    string
	actions    map[string]hostapi.ActionID
	fns        []hostapi.ActionFunc
	timers     map[int]hostapi.TimerFunc
	nextTimer  int
	console    strings.Builder
	terminated bool
	exitCode   int
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		version: "7.73",
		actions: make(map[string]hostapi.ActionID),
		timers:  make(map[int]hostapi.TimerFunc),
	}
}

func (h *fakeHost) Version() string { return h.version }
func (h *fakeHost) CurrentProject() hostapi.Project { return nil }
func (h *fakeHost) Projects() []hostapi.Project { return nil }
func (h *fakeHost) AddProjectTab(bool) hostapi.Project { return nil }
func (h *fakeHost) ExtState() hostapi.ExtState { return nil }
func (h *fakeHost) Console(msg string) { h.console.WriteString(msg) }
func (h *fakeHost) ActionID(name string) (hostapi.ActionID, bool) {
	id, ok := h.actions[name]
	return id, ok
}

func (h *fakeHost) RegisterAction(name string, fn hostapi.ActionFunc) (hostapi.ActionID, error) {
	if _, ok := h.actions[name]; ok {
		return 0, fmt.Errorf("action %q already registered", name)
	}
	h.fns = append(h.fns, fn)
	id := hostapi.ActionID(len(h.fns))
	h.actions[name] = id
	return id, nil
}

func (h *fakeHost) PerformAction(id hostapi.ActionID) error {
	if id < 1 || int(id) > len(h.fns) {
		return hostapi.ErrNotFound
	}
	return h.fns[id-1]()
}

func (h *fakeHost) RegisterTimer(fn hostapi.TimerFunc) func() {
	h.nextTimer++
	id := h.nextTimer
	h.timers[id] = fn
	return func() { delete(h.timers, id) }
}

func (h *fakeHost) Terminate(code int) {
	h.terminated = true
	h.exitCode = code
}

// loop ticks timers until the host is terminated or maxTicks is reached.
func (h *fakeHost) loop(maxTicks int) int {
	ticks := 0
	for ; ticks < maxTicks && !h.terminated; ticks++ {
		for _, fn := range h.timers {
			fn()
		}
	}
	return ticks
}
