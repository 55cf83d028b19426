// Package hostapi declares the capabilities a host application exposes to
// code running inside it.
//
// The host is an external collaborator: hostbench never implements a real
// host object model, it only consumes these interfaces. Every method must be
// called from the host's main-loop goroutine.
package hostapi

import "errors"

// ErrNotFound is returned when a capability object no longer exists.
var ErrNotFound = errors.New("hostapi: not found")

// ActionID identifies a registered action.
type ActionID int

// ActionFunc is invoked by the host when an action is performed.
type ActionFunc func() error

// TimerFunc is invoked by the host on every main-loop tick.
type TimerFunc func()

// Host is the top-level capability object handed to a plugin at load time.
type Host interface {
	// Version returns the host version string, e.g. "7.73".
	Version() string

	CurrentProject() Project
	Projects() []Project
	AddProjectTab(makeCurrent bool) Project

	// RegisterAction registers a named action and returns its id.
	RegisterAction(name string, fn ActionFunc) (ActionID, error)
	PerformAction(id ActionID) error
	ActionID(name string) (ActionID, bool)

	// RegisterTimer installs fn to be called once per main-loop tick.
	// The returned func removes the timer.
	RegisterTimer(fn TimerFunc) (unregister func())

	ExtState() ExtState

	// Console prints a message to the host console.
	Console(msg string)

	// Terminate asks the host to exit with the given code after the
	// current tick returns.
	Terminate(code int)
}

// Project is one open project tab.
type Project interface {
	Name() string
	IsCurrent() bool
	MakeCurrent()
	Close() error

	Tracks() []Track
	AddTrack(name string) Track
	TrackByName(name string) (Track, bool)

	Play()
	Pause()
	Stop()
	IsPlaying() bool
	IsPaused() bool
	IsStopped() bool
}

// Track is a track inside a project.
type Track interface {
	Name() string
	SetName(name string)
	Items() []Item
	AddItem(position, length float64) Item
	Remove() error
}

// Item is a media item on a track.
type Item interface {
	Position() float64
	Length() float64
	SetPosition(pos float64)
	Takes() []Take
	AddTake(name string) Take
	ActiveTake() (Take, bool)
}

// Take is one take of an item.
type Take interface {
	Name() string
	SetName(name string)
	MakeActive()
	IsActive() bool
}

// ExtState is persistent keyed extension state.
// Values set with persist=true survive a host restart.
type ExtState interface {
	Get(section, key string) (string, bool)
	Set(section, key, value string, persist bool) error
	Delete(section, key string, persist bool) error
}
