package step

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/hostbench/internal/hostapi"
	"github.com/roach88/hostbench/internal/hostversion"
)

// ErrInvalidStep is returned by Push for a step with an unusable name or
// missing action.
var ErrInvalidStep = errors.New("invalid step")

// Func is the body of a step. A returned error records FAIL with the
// error's message; a panic records ABORTED.
type Func func(c *Context) error

// Context grants a step access to the host capabilities.
type Context struct {
	Host   hostapi.Host
	Logger *slog.Logger
	RunID  string
	// Index is the step's position in the queue.
	Index int
}

// Restriction limits a step to host versions at or above Min.
// The zero value allows every version.
type Restriction struct {
	Min string
}

// AllVersions is the zero Restriction.
var AllVersions = Restriction{}

// MinVersion restricts a step to hosts at version v or newer.
func MinVersion(v string) Restriction {
	return Restriction{Min: v}
}

// Allows reports whether the restriction admits hostVersion.
// An unparsable host version is admitted only by AllVersions.
func (r Restriction) Allows(hostVersion string) bool {
	if r.Min == "" {
		return true
	}
	if !hostversion.Valid(hostVersion) {
		return false
	}
	return hostversion.Compare(hostVersion, r.Min) >= 0
}

// TestStep is a named unit of test logic. Immutable once pushed.
type TestStep struct {
	Name        string
	Action      Func
	Restriction Restriction
}

// New builds a step that runs on every host version.
func New(name string, action Func) TestStep {
	return TestStep{Name: name, Action: action}
}

// Restricted builds a step with a version restriction.
func Restricted(r Restriction, name string, action Func) TestStep {
	return TestStep{Name: name, Action: action, Restriction: r}
}

func (s TestStep) String() string {
	return s.Name
}

// normalize returns s with an NFC-normalized name, or an error if the name
// could not be written as a single sink record field.
func (s TestStep) normalize() (TestStep, error) {
	name := norm.NFC.String(strings.TrimSpace(s.Name))
	if name == "" {
		return s, fmt.Errorf("%w: empty name", ErrInvalidStep)
	}
	if strings.ContainsAny(name, "\r\n") {
		return s, fmt.Errorf("%w: name %q spans lines", ErrInvalidStep, s.Name)
	}
	if s.Action == nil {
		return s, fmt.Errorf("%w: step %q has no action", ErrInvalidStep, name)
	}
	s.Name = name
	return s, nil
}
