package mmdeploy

import (
	"sync"

	"go.uber.org/zap"
)

// Model is a model loaded once and shared by the pipelines built from it.
type Model struct {
	h   *nativeHandle
	eng ResourceEngine
}

// Scheduler is a thread or thread pool that pipelines run on once it is
// added to an EngineContext.
type Scheduler struct {
	h       *nativeHandle
	eng     ResourceEngine
	threads int
}

// EngineContext is an execution context: a device plus the models and
// schedulers added to it. Pipelines created from it reference it, so it
// cannot be destroyed before them.
type EngineContext struct {
	h   *nativeHandle
	eng ResourceEngine
	dev Device

	mu   sync.Mutex
	deps []*guard
}

func (s *Session) resources(op string) (ResourceEngine, error) {
	eng, ok := s.engine.(ResourceEngine)
	if !ok {
		return nil, &Error{Op: op, Kind: KindUnsupported, Detail: s.engine.Name()}
	}
	return eng, nil
}

// NewModel loads the model at path.
func (s *Session) NewModel(path string) (*Model, error) {
	eng, err := s.resources("model create")
	if err != nil {
		return nil, err
	}
	h, err := s.createHandle(handleSpec{
		name:   "model",
		tier:   tierResource,
		kind:   kindModel,
		shared: true,
		create: func() (Raw, Status) { return eng.CreateModel(path) },
		free:   eng.DestroyModel,
	})
	if err != nil {
		return nil, err
	}
	return &Model{h: h, eng: eng}, nil
}

// ID returns the native identity of the model.
func (m *Model) ID() ModelID { return ModelID(m.h.g.raw) }

// State returns the lifecycle state of the model.
func (m *Model) State() Lifecycle { return m.h.g.lifecycle() }

// Destroy frees the model. Engine contexts it was added to and pipelines
// created from it must be destroyed first.
func (m *Model) Destroy() error { return m.h.destroy() }

// NewThreadPool creates a scheduler backed by threads worker threads.
func (s *Session) NewThreadPool(threads int) (*Scheduler, error) {
	const op = "scheduler create"
	if threads <= 0 {
		return nil, precondition(op, InvalidRaw, "thread pool of %d threads", threads)
	}
	eng, err := s.resources(op)
	if err != nil {
		return nil, err
	}
	return s.newScheduler(eng, threads, func() (Raw, Status) { return eng.CreateThreadPool(threads) })
}

// NewThread creates a scheduler backed by a single dedicated thread.
func (s *Session) NewThread() (*Scheduler, error) {
	eng, err := s.resources("scheduler create")
	if err != nil {
		return nil, err
	}
	return s.newScheduler(eng, 1, eng.CreateThread)
}

func (s *Session) newScheduler(eng ResourceEngine, threads int, create func() (Raw, Status)) (*Scheduler, error) {
	h, err := s.createHandle(handleSpec{
		name:   "scheduler",
		tier:   tierResource,
		kind:   kindScheduler,
		shared: true,
		create: create,
		free:   eng.DestroyScheduler,
	})
	if err != nil {
		return nil, err
	}
	return &Scheduler{h: h, eng: eng, threads: threads}, nil
}

// ID returns the native identity of the scheduler.
func (sc *Scheduler) ID() SchedulerID { return SchedulerID(sc.h.g.raw) }

// State returns the lifecycle state of the scheduler.
func (sc *Scheduler) State() Lifecycle { return sc.h.g.lifecycle() }

// Threads returns the number of threads the scheduler was created with.
func (sc *Scheduler) Threads() int { return sc.threads }

// Destroy frees the scheduler. Engine contexts it was added to must be
// destroyed first.
func (sc *Scheduler) Destroy() error { return sc.h.destroy() }

// NewEngineContext creates an execution context on dev.
func (s *Session) NewEngineContext(dev Device) (*EngineContext, error) {
	const op = "engine context create"
	eng, err := s.resources(op)
	if err != nil {
		return nil, err
	}
	if err := dev.validate(); err != nil {
		return nil, &Error{Op: op, Kind: KindPrecondition, Cause: err}
	}
	c := &EngineContext{eng: eng, dev: dev}
	h, err := s.createHandle(handleSpec{
		name:     "engine context",
		tier:     tierEngineContext,
		kind:     kindEngineContext,
		shared:   true,
		create:   func() (Raw, Status) { return eng.CreateEngineContext(dev) },
		free:     eng.DestroyEngineContext,
		released: c.dropDeps,
	})
	if err != nil {
		return nil, err
	}
	c.h = h
	return c, nil
}

// ID returns the native identity of the engine context.
func (c *EngineContext) ID() EngineContextID { return EngineContextID(c.h.g.raw) }

// State returns the lifecycle state of the engine context.
func (c *EngineContext) State() Lifecycle { return c.h.g.lifecycle() }

// Device returns the device the context was created on.
func (c *EngineContext) Device() Device { return c.dev }

// AddModel makes m available to pipelines built on c under name. m cannot
// be destroyed while c is live.
func (c *EngineContext) AddModel(name string, m *Model) error {
	const op = "engine context add model"
	if m == nil {
		return precondition(op, c.h.g.raw, "nil model")
	}
	return c.add(op, m.h, "model", func() Status {
		return c.eng.AddContextModel(c.h.g.raw, name, m.h.g.raw)
	})
}

// AddScheduler makes sc available to pipelines built on c under name. sc
// cannot be destroyed while c is live.
func (c *EngineContext) AddScheduler(name string, sc *Scheduler) error {
	const op = "engine context add scheduler"
	if sc == nil {
		return precondition(op, c.h.g.raw, "nil scheduler")
	}
	return c.add(op, sc.h, "scheduler", func() Status {
		return c.eng.AddContextScheduler(c.h.g.raw, name, sc.h.g.raw)
	})
}

// add holds c exclusively and dep shared across the call, so neither can be
// destroyed until the reference is recorded.
func (c *EngineContext) add(op string, dep *nativeHandle, what string, call func() Status) error {
	if err := dep.owned(op, c.h.sess, what); err != nil {
		return err
	}
	unlock, err := c.h.g.acquire(op, true)
	if err != nil {
		return err
	}
	defer unlock()
	release, err := dep.g.acquire(op, false)
	if err != nil {
		return err
	}
	defer release()

	if st := call(); !st.OK() {
		c.h.sess.log.Error("failed to add to engine context",
			zap.String("op", op),
			zap.Uintptr("handle", uintptr(c.h.g.raw)),
			zap.Int32("status", int32(st)))
		return statusError(op, KindApply, c.h.g.raw, st)
	}
	dep.g.refs.Add(1)
	c.mu.Lock()
	c.deps = append(c.deps, dep.g)
	c.mu.Unlock()
	return nil
}

func (c *EngineContext) dropDeps() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, g := range c.deps {
		g.refs.Add(-1)
	}
	c.deps = nil
}

// Destroy frees the engine context and drops its references to the models
// and schedulers added to it. Pipelines created from it must be destroyed
// first.
func (c *EngineContext) Destroy() error { return c.h.destroy() }
