package simhost

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/hostbench/internal/hostapi"
	"github.com/roach88/hostbench/internal/logging"
)

// DefaultTick is the main-loop timer interval.
const DefaultTick = 30 * time.Millisecond

// Config configures a Host.
type Config struct {
	Version string
	// Console receives Console output. Defaults to io.Discard.
	Console io.Writer
	Logger  *slog.Logger
	// Persist backs extension state written with persist=true.
	// Nil keeps all state in memory.
	Persist PersistentStore
}

type action struct {
	name string
	fn   hostapi.ActionFunc
}

type timer struct {
	fn      hostapi.TimerFunc
	removed bool
}

// Host is the simulated host. It implements hostapi.Host.
type Host struct {
	version string
	console io.Writer
	logger  *slog.Logger

	projects    []*project
	current     *project
	nextProject int

	actions []action
	byName  map[string]hostapi.ActionID
	timers  []*timer

	ext *extState

	exiting  bool
	exitCode int
	ticks    int
}

var _ hostapi.Host = (*Host)(nil)

// New creates a host with one empty project open.
func New(cfg Config) *Host {
	h := &Host{
		version: cfg.Version,
		console: cfg.Console,
		logger:  cfg.Logger,
		byName:  make(map[string]hostapi.ActionID),
	}
	if h.console == nil {
		h.console = io.Discard
	}
	if h.logger == nil {
		h.logger = logging.Discard()
	}
	h.ext = newExtState(cfg.Persist, h.logger)
	h.AddProjectTab(true)
	return h
}

func (h *Host) Version() string {
	return h.version
}

func (h *Host) CurrentProject() hostapi.Project {
	return h.current
}

func (h *Host) Projects() []hostapi.Project {
	out := make([]hostapi.Project, len(h.projects))
	for i, p := range h.projects {
		out[i] = p
	}
	return out
}

func (h *Host) AddProjectTab(makeCurrent bool) hostapi.Project {
	h.nextProject++
	p := &project{host: h, name: fmt.Sprintf("Project %d", h.nextProject)}
	h.projects = append(h.projects, p)
	if makeCurrent || h.current == nil {
		h.current = p
	}
	return p
}

func (h *Host) closeProject(p *project) error {
	idx := -1
	for i, q := range h.projects {
		if q == p {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("close %q: %w", p.name, hostapi.ErrNotFound)
	}
	h.projects = append(h.projects[:idx], h.projects[idx+1:]...)
	if h.current != p {
		return nil
	}
	// The host always keeps one project open.
	if len(h.projects) == 0 {
		h.current = nil
		h.AddProjectTab(true)
		return nil
	}
	h.current = h.projects[max(idx-1, 0)]
	return nil
}

// RegisterAction registers a named action. Names are unique.
func (h *Host) RegisterAction(name string, fn hostapi.ActionFunc) (hostapi.ActionID, error) {
	if name == "" {
		return 0, fmt.Errorf("register action: empty name")
	}
	if fn == nil {
		return 0, fmt.Errorf("register action %q: nil func", name)
	}
	if _, dup := h.byName[name]; dup {
		return 0, fmt.Errorf("register action %q: already registered", name)
	}
	h.actions = append(h.actions, action{name: name, fn: fn})
	id := hostapi.ActionID(len(h.actions))
	h.byName[name] = id
	return id, nil
}

// PerformAction runs the action synchronously.
func (h *Host) PerformAction(id hostapi.ActionID) error {
	if id < 1 || int(id) > len(h.actions) {
		return fmt.Errorf("perform action %d: %w", id, hostapi.ErrNotFound)
	}
	a := h.actions[id-1]
	h.logger.Debug("performing action", "action", a.name)
	if err := a.fn(); err != nil {
		return fmt.Errorf("action %s: %w", a.name, err)
	}
	return nil
}

func (h *Host) ActionID(name string) (hostapi.ActionID, bool) {
	id, ok := h.byName[name]
	return id, ok
}

// RegisterTimer appends fn to the timer list. Timers run in registration order.
func (h *Host) RegisterTimer(fn hostapi.TimerFunc) func() {
	t := &timer{fn: fn}
	h.timers = append(h.timers, t)
	return func() {
		if t.removed {
			return
		}
		t.removed = true
		for i, x := range h.timers {
			if x == t {
				h.timers = append(h.timers[:i], h.timers[i+1:]...)
				break
			}
		}
	}
}

// Timers returns the number of registered timers.
func (h *Host) Timers() int {
	return len(h.timers)
}

func (h *Host) ExtState() hostapi.ExtState {
	return h.ext
}

func (h *Host) Console(msg string) {
	io.WriteString(h.console, msg)
}

// Terminate requests exit after the current tick. The first request wins.
func (h *Host) Terminate(code int) {
	if h.exiting {
		return
	}
	h.exiting = true
	h.exitCode = code
	h.logger.Debug("termination requested", "code", code)
}

// Exiting reports whether termination was requested, and the exit code.
func (h *Host) Exiting() (bool, int) {
	return h.exiting, h.exitCode
}

// Tick runs one main-loop iteration: every timer registered when the tick
// starts is called once, unless an earlier timer removed it.
func (h *Host) Tick() {
	h.ticks++
	snapshot := make([]*timer, len(h.timers))
	copy(snapshot, h.timers)
	for _, t := range snapshot {
		if t.removed {
			continue
		}
		t.fn()
	}
}

// Ticks returns the number of completed ticks.
func (h *Host) Ticks() int {
	return h.ticks
}

// Loop runs the main loop until a termination request, returning its exit
// code, or until ctx is cancelled.
func (h *Host) Loop(ctx context.Context, interval time.Duration) (int, error) {
	if interval <= 0 {
		interval = DefaultTick
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if h.exiting {
			return h.exitCode, nil
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
			h.Tick()
		}
	}
}
