// Package fakeengine provides an instrumented in-memory mmdeploy.Engine for
// tests. It implements every capability, hands out distinct handle
// identities, poisons result memory on release and records every misuse of
// the native protocol (double destroy, double release, use after destroy,
// use after release, overlapping use of a tracker state, destroying a
// resource something still references) instead of crashing.
//
// Records are derived from the first byte of each input image so tests can
// check that result i belongs to input i.
package fakeengine

import (
	"fmt"
	"sync"
	"time"

	"github.com/csotherden/gorgonia-mmdeploy/mmdeploy"
)

type handle struct {
	kind      string
	tracker   mmdeploy.Raw
	params    mmdeploy.PoseTrackerParams
	refs      []mmdeploy.Raw // resources this handle was built on
	threads   int
	inFlight  int
	frames    int
	destroyed bool
}

type buffer struct {
	kind     string
	items    any
	counts   []int32
	n        int
	released bool
}

// Engine is the fake. The zero value is not usable; call New.
type Engine struct {
	mu         sync.Mutex
	handles    map[mmdeploy.Raw]*handle
	buffers    map[mmdeploy.Raw]*buffer
	models     map[string]bool
	violations []string
	nextRaw    mmdeploy.Raw

	applyFail   []mmdeploy.Status
	applyDelay  time.Duration
	maxInFlight int
	reentrant   bool
	anyModel    bool

	// LastDetect holds the detect flags of the most recent pose tracker apply.
	LastDetect []int32
}

// Option configures an Engine.
type Option func(*Engine)

// WithReentrant makes the engine report itself reentrant.
func WithReentrant() Option {
	return func(e *Engine) { e.reentrant = true }
}

// WithApplyDelay makes every apply sleep for d while its handle is marked
// in flight, to widen race windows in concurrency tests.
func WithApplyDelay(d time.Duration) Option {
	return func(e *Engine) { e.applyDelay = d }
}

// WithModels restricts create to the given model paths; any other path
// fails with StatusFileNotExist. Without it every path is accepted.
func WithModels(paths ...string) Option {
	return func(e *Engine) {
		e.anyModel = false
		for _, p := range paths {
			e.models[p] = true
		}
	}
}

// New returns a fake engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		handles:  make(map[mmdeploy.Raw]*handle),
		buffers:  make(map[mmdeploy.Raw]*buffer),
		models:   make(map[string]bool),
		nextRaw:  0x1000,
		anyModel: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string    { return "fake" }
func (e *Engine) Reentrant() bool { return e.reentrant }

// FailNextApply makes the next apply (of any capability) return st.
func (e *Engine) FailNextApply(st mmdeploy.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.applyFail = append(e.applyFail, st)
}

// Violations returns every protocol misuse observed so far.
func (e *Engine) Violations() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.violations...)
}

// LiveHandles counts handles created and not yet destroyed.
func (e *Engine) LiveHandles() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, h := range e.handles {
		if !h.destroyed {
			n++
		}
	}
	return n
}

// LiveBuffers counts result buffers not yet released.
func (e *Engine) LiveBuffers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, b := range e.buffers {
		if !b.released {
			n++
		}
	}
	return n
}

// MaxInFlight is the largest number of applies ever observed running at
// once on a single handle.
func (e *Engine) MaxInFlight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxInFlight
}

// StateParams returns the parameter block a state was created with.
func (e *Engine) StateParams(state mmdeploy.Raw) (mmdeploy.PoseTrackerParams, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.handles[state]
	if !ok || h.kind != kindPoseState {
		return mmdeploy.PoseTrackerParams{}, false
	}
	return h.params, true
}

func (e *Engine) violate(format string, args ...any) {
	e.violations = append(e.violations, fmt.Sprintf(format, args...))
}

func (e *Engine) alloc() mmdeploy.Raw {
	r := e.nextRaw
	e.nextRaw += 0x10
	return r
}

func (e *Engine) create(kind string, paths ...string) (mmdeploy.Raw, mmdeploy.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range paths {
		if p == "" {
			return mmdeploy.InvalidRaw, mmdeploy.StatusInvalidArg
		}
		if !e.anyModel && !e.models[p] {
			return mmdeploy.InvalidRaw, mmdeploy.StatusFileNotExist
		}
	}
	r := e.alloc()
	e.handles[r] = &handle{kind: kind}
	return r, mmdeploy.StatusSuccess
}

func (e *Engine) destroy(kind string, r mmdeploy.Raw) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.handles[r]
	switch {
	case !ok:
		e.violate("destroy of unknown %s %#x", kind, uintptr(r))
	case h.destroyed:
		e.violate("double destroy of %s %#x", kind, uintptr(r))
	case h.kind != kind:
		e.violate("destroy of %s %#x as %s", h.kind, uintptr(r), kind)
	default:
		h.destroyed = true
	}
}

// enter marks the handles in flight and returns the scripted status, if any.
func (e *Engine) enter(kind string, rs ...mmdeploy.Raw) (mmdeploy.Status, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range rs {
		h, ok := e.handles[r]
		if !ok || h.destroyed {
			e.violate("%s apply on dead handle %#x", kind, uintptr(r))
			return mmdeploy.StatusInvalidArg, false
		}
	}
	if len(e.applyFail) > 0 {
		st := e.applyFail[0]
		e.applyFail = e.applyFail[1:]
		return st, false
	}
	for i, r := range rs {
		h := e.handles[r]
		if i > 0 && h.inFlight > 0 {
			e.violate("%s state %#x advanced concurrently", kind, uintptr(r))
		}
		h.inFlight++
		if h.inFlight > e.maxInFlight {
			e.maxInFlight = h.inFlight
		}
	}
	return mmdeploy.StatusSuccess, true
}

func (e *Engine) leave(rs ...mmdeploy.Raw) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range rs {
		e.handles[r].inFlight--
	}
}

// run brackets one apply: bookkeeping, delay, then storing the buffer.
func (e *Engine) run(kind string, imgs []mmdeploy.Image, rs []mmdeploy.Raw,
	build func() (any, []int32)) (mmdeploy.NativeResult, mmdeploy.Status) {
	st, ok := e.enter(kind, rs...)
	if !ok {
		return mmdeploy.NativeResult{}, st
	}
	if e.applyDelay > 0 {
		time.Sleep(e.applyDelay)
	}
	items, counts := build()
	e.leave(rs...)

	e.mu.Lock()
	defer e.mu.Unlock()
	data := e.alloc()
	res := mmdeploy.NativeResult{Data: data, Len: len(imgs)}
	if counts != nil {
		res.Counts = e.alloc()
	}
	e.buffers[data] = &buffer{kind: kind, items: items, counts: counts, n: len(imgs)}
	return res, mmdeploy.StatusSuccess
}

// lookup returns the records and counts of a live buffer. Reading a
// released buffer is recorded and fails.
func (e *Engine) lookup(kind string, res mmdeploy.NativeResult) (any, []int32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.buffers[res.Data]
	if !ok || b.kind != kind {
		e.violate("decode of unknown %s buffer %#x", kind, uintptr(res.Data))
		return nil, nil, fmt.Errorf("fakeengine: unknown %s buffer %#x", kind, uintptr(res.Data))
	}
	if b.released {
		e.violate("read of released %s buffer %#x", kind, uintptr(res.Data))
		return nil, nil, fmt.Errorf("fakeengine: %s buffer %#x is poisoned", kind, uintptr(res.Data))
	}
	return b.items, b.counts, nil
}

func (e *Engine) release(kind string, res mmdeploy.NativeResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.buffers[res.Data]
	switch {
	case !ok:
		e.violate("release of unknown %s buffer %#x", kind, uintptr(res.Data))
	case b.released:
		e.violate("double release of %s buffer %#x", kind, uintptr(res.Data))
	case b.n != res.Len:
		e.violate("release of %s buffer %#x with count %d, want %d", kind, uintptr(res.Data), res.Len, b.n)
	default:
		b.released = true
		b.items = nil
		b.counts = nil
	}
}

// seed is the byte the fake derives records from.
func seed(img mmdeploy.Image) int32 {
	if len(img.Data) == 0 {
		return 0
	}
	return int32(img.Data[0])
}

// recordCount is how many records the fake emits for img: 1..3.
func recordCount(img mmdeploy.Image) int32 {
	return 1 + seed(img)%3
}
