package mmdeploy

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Raw is the address-sized identity of a native resource as the engine
// reports it. The binding never dereferences it.
type Raw uintptr

// InvalidRaw is the sentinel identity. No live resource has it.
const InvalidRaw Raw = 0

// ContextID identifies a live inference context (classifier, detector,
// segmentor, text detector or pose tracker pipeline).
type ContextID Raw

// StateID identifies a live per-session state derived from a context.
type StateID Raw

// ModelID identifies a loaded model.
type ModelID Raw

// EngineContextID identifies an execution context: the device, models and
// schedulers a pipeline is assembled with.
type EngineContextID Raw

// SchedulerID identifies a thread or thread pool pipelines can run on.
type SchedulerID Raw

// Lifecycle is the state of a handle.
//
//	create ok   -> Live
//	create fail -> Invalid (terminal)
//	destroy     -> Destroyed (terminal)
type Lifecycle int32

const (
	Uninitialized Lifecycle = iota
	Live
	Invalid
	Destroyed
)

func (l Lifecycle) String() string {
	switch l {
	case Uninitialized:
		return "uninitialized"
	case Live:
		return "live"
	case Invalid:
		return "invalid"
	case Destroyed:
		return "destroyed"
	}
	return fmt.Sprintf("lifecycle(%d)", int32(l))
}

type resourceKind uint8

const (
	kindContext resourceKind = iota
	kindState
	kindModel
	kindEngineContext
	kindScheduler
)

func (k resourceKind) String() string {
	switch k {
	case kindState:
		return "state"
	case kindModel:
		return "model"
	case kindEngineContext:
		return "engine context"
	case kindScheduler:
		return "scheduler"
	}
	return "context"
}

// guard serializes access to one native handle. Apply holds the read side
// when the engine is reentrant and the write side otherwise; destroy always
// holds the write side, so it never overlaps an in-flight apply.
type guard struct {
	mu     sync.RWMutex
	raw    Raw
	kind   resourceKind
	shared bool
	state  atomic.Int32

	// outstanding counts results produced through this handle that have
	// not been released yet.
	outstanding atomic.Int64
	// children counts live states derived from this handle.
	children atomic.Int64
	// refs counts live handles built on this one: contexts a model or
	// scheduler was added to, and pipelines created from it.
	refs atomic.Int64
}

func newGuard(raw Raw, kind resourceKind, shared bool) *guard {
	g := &guard{raw: raw, kind: kind, shared: shared}
	g.state.Store(int32(Live))
	return g
}

func (g *guard) lifecycle() Lifecycle {
	return Lifecycle(g.state.Load())
}

// acquire locks g for an apply and verifies it is still live. The returned
// func must be called to unlock.
func (g *guard) acquire(op string, exclusive bool) (func(), error) {
	var unlock func()
	if g.shared && !exclusive {
		g.mu.RLock()
		unlock = g.mu.RUnlock
	} else {
		g.mu.Lock()
		unlock = g.mu.Unlock
	}
	if l := g.lifecycle(); l != Live {
		unlock()
		return nil, precondition(op, g.raw, "%s handle is %s", g.kind, l)
	}
	return unlock, nil
}

// destroy runs free under the write lock and marks g destroyed. It refuses
// handles that are not live or that anything still depends on: unreleased
// results, live states, or live handles referencing them.
func (g *guard) destroy(op string, free func(Raw)) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if l := g.lifecycle(); l != Live {
		return precondition(op, g.raw, "%s handle is %s", g.kind, l)
	}
	if n := g.outstanding.Load(); n > 0 {
		return precondition(op, g.raw, "%d unreleased results", n)
	}
	if n := g.children.Load(); n > 0 {
		return precondition(op, g.raw, "%d live states", n)
	}
	if n := g.refs.Load(); n > 0 {
		return precondition(op, g.raw, "referenced by %d live handles", n)
	}

	free(g.raw)
	g.state.Store(int32(Destroyed))
	return nil
}
