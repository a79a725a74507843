package system

import (
	"reflect"
	"strconv"
)

// Phase defines coarse execution ordering within a single frame. Every system
// of an earlier phase finishes before any system of a later phase starts.
type Phase int

const (
	PhaseInput      Phase = iota // 0: host input, external events
	PhasePreUpdate               // 1: process last frame's events
	PhaseUpdate                  // 2: simulation
	PhasePostUpdate              // 3: derived state (transforms, animation)
	PhaseCleanup                 // 4: lifetimes, destruction requests
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhasePreUpdate:
		return "pre_update"
	case PhaseUpdate:
		return "update"
	case PhasePostUpdate:
		return "post_update"
	case PhaseCleanup:
		return "cleanup"
	}
	return "phase(" + strconv.Itoa(int(p)) + ")"
}

// Descriptor is a system's access signature. A type listed in both Reads and
// Writes counts as written.
type Descriptor struct {
	Name   string
	Phase  Phase
	Reads  []reflect.Type
	Writes []reflect.Type
	After  []string // run after these systems
	Before []string // run before these systems
}

// System is the interface every ECS system implements.
type System interface {
	Descriptor() Descriptor
	Update(ctx *Context) error
}

type funcSystem struct {
	desc Descriptor
	fn   func(*Context) error
}

func (f funcSystem) Descriptor() Descriptor    { return f.desc }
func (f funcSystem) Update(ctx *Context) error { return f.fn(ctx) }

// Func adapts a plain function to System.
func Func(desc Descriptor, fn func(ctx *Context) error) System {
	return funcSystem{desc: desc, fn: fn}
}
