package fakeengine

import "github.com/csotherden/gorgonia-mmdeploy/mmdeploy"

const (
	kindModel         = "model"
	kindEngineContext = "engine context"
	kindScheduler     = "scheduler"
)

// References returns the resources h was built on: the models and
// schedulers added to an engine context, or the models and context a pose
// tracker was created from.
func (e *Engine) References(h mmdeploy.Raw) []mmdeploy.Raw {
	e.mu.Lock()
	defer e.mu.Unlock()
	if x, ok := e.handles[h]; ok {
		return append([]mmdeploy.Raw(nil), x.refs...)
	}
	return nil
}

// SchedulerThreads returns the thread count a scheduler was created with.
func (e *Engine) SchedulerThreads(h mmdeploy.Raw) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	x, ok := e.handles[h]
	if !ok || x.kind != kindScheduler {
		return 0, false
	}
	return x.threads, true
}

// live reports whether r is a live handle of kind. Callers hold e.mu.
func (e *Engine) live(r mmdeploy.Raw, kind string) bool {
	h, ok := e.handles[r]
	return ok && !h.destroyed && h.kind == kind
}

// destroyResource records a violation for every live handle still built on
// r, then destroys it.
func (e *Engine) destroyResource(kind string, r mmdeploy.Raw) {
	e.mu.Lock()
	for owner, h := range e.handles {
		if h.destroyed {
			continue
		}
		for _, ref := range h.refs {
			if ref == r {
				e.violate("%s %#x destroyed while %s %#x references it", kind, uintptr(r), h.kind, uintptr(owner))
			}
		}
	}
	e.mu.Unlock()
	e.destroy(kind, r)
}

func (e *Engine) CreateModel(path string) (mmdeploy.Raw, mmdeploy.Status) {
	return e.create(kindModel, path)
}

func (e *Engine) DestroyModel(h mmdeploy.Raw) { e.destroyResource(kindModel, h) }

func (e *Engine) CreateEngineContext(mmdeploy.Device) (mmdeploy.Raw, mmdeploy.Status) {
	return e.create(kindEngineContext)
}

func (e *Engine) AddContextModel(ctx mmdeploy.Raw, _ string, model mmdeploy.Raw) mmdeploy.Status {
	return e.addToContext(ctx, model, kindModel)
}

func (e *Engine) AddContextScheduler(ctx mmdeploy.Raw, _ string, sched mmdeploy.Raw) mmdeploy.Status {
	return e.addToContext(ctx, sched, kindScheduler)
}

func (e *Engine) addToContext(ctx, r mmdeploy.Raw, kind string) mmdeploy.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.live(ctx, kindEngineContext) || !e.live(r, kind) {
		e.violate("add of %s %#x to engine context %#x", kind, uintptr(r), uintptr(ctx))
		return mmdeploy.StatusInvalidArg
	}
	c := e.handles[ctx]
	c.refs = append(c.refs, r)
	return mmdeploy.StatusSuccess
}

func (e *Engine) DestroyEngineContext(h mmdeploy.Raw) { e.destroyResource(kindEngineContext, h) }

func (e *Engine) CreateThreadPool(threads int) (mmdeploy.Raw, mmdeploy.Status) {
	if threads <= 0 {
		return mmdeploy.InvalidRaw, mmdeploy.StatusInvalidArg
	}
	return e.createScheduler(threads)
}

func (e *Engine) CreateThread() (mmdeploy.Raw, mmdeploy.Status) { return e.createScheduler(1) }

func (e *Engine) createScheduler(threads int) (mmdeploy.Raw, mmdeploy.Status) {
	r, st := e.create(kindScheduler)
	if st.OK() {
		e.mu.Lock()
		e.handles[r].threads = threads
		e.mu.Unlock()
	}
	return r, st
}

func (e *Engine) DestroyScheduler(h mmdeploy.Raw) { e.destroyResource(kindScheduler, h) }

// CreatePoseTrackerFromModels builds a tracker on live models and a live
// engine context, recording the references.
func (e *Engine) CreatePoseTrackerFromModels(det, pose, ctx mmdeploy.Raw) (mmdeploy.Raw, mmdeploy.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.live(det, kindModel) || !e.live(pose, kindModel) || !e.live(ctx, kindEngineContext) {
		e.violate("pose tracker created from dead resources %#x %#x %#x", uintptr(det), uintptr(pose), uintptr(ctx))
		return mmdeploy.InvalidRaw, mmdeploy.StatusInvalidArg
	}
	r := e.alloc()
	e.handles[r] = &handle{kind: kindPoseTracker, refs: []mmdeploy.Raw{det, pose, ctx}}
	return r, mmdeploy.StatusSuccess
}

var _ mmdeploy.ResourceEngine = (*Engine)(nil)
