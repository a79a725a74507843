package system

import (
	"errors"
	"strings"
)

var (
	// ErrSchedulerCycle reports conflicting dependencies that form a cycle.
	ErrSchedulerCycle = errors.New("system: dependency cycle")

	ErrDuplicateSystem  = errors.New("system: duplicate system name")
	ErrUnknownSystem    = errors.New("system: ordering hint names unknown system")
	ErrUndeclaredAccess = errors.New("system: component access not declared")
	ErrSealed           = errors.New("system: scheduler sealed")
)

// CycleError lists the systems left unordered by a dependency cycle.
type CycleError struct {
	Systems []string
}

func (e *CycleError) Error() string {
	return ErrSchedulerCycle.Error() + " among [" + strings.Join(e.Systems, ", ") + "]"
}

func (e *CycleError) Unwrap() error { return ErrSchedulerCycle }

// RunError wraps an error returned (or a panic raised) by one system body.
type RunError struct {
	System string
	Err    error
}

func (e *RunError) Error() string { return "system " + e.System + ": " + e.Err.Error() }

func (e *RunError) Unwrap() error { return e.Err }
