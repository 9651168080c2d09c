package mmdeploy

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"
)

// PoseTracker is a live pose tracking pipeline. Tracking progress lives in
// PoseState values created from it; one Apply can advance several states,
// one per frame.
type PoseTracker struct {
	h   *nativeHandle
	eng PoseTrackerEngine
}

// PoseState is the running state of one tracked stream.
type PoseState struct {
	tracker *PoseTracker
	g       *guard
	regID   uint64
}

// NewPoseTracker creates a tracker from a person detection model and a pose
// estimation model on dev.
func (s *Session) NewPoseTracker(detModelPath, poseModelPath string, dev Device) (*PoseTracker, error) {
	eng, ok := s.engine.(PoseTrackerEngine)
	if !ok {
		return nil, &Error{Op: "pose tracker create", Kind: KindUnsupported, Detail: s.engine.Name()}
	}
	if err := dev.validate(); err != nil {
		return nil, &Error{Op: "pose tracker create", Kind: KindPrecondition, Cause: err}
	}
	h, err := s.createContext("pose tracker", func() (Raw, Status) {
		return eng.CreatePoseTracker(detModelPath, poseModelPath, dev)
	}, eng.DestroyPoseTracker)
	if err != nil {
		return nil, err
	}
	return &PoseTracker{h: h, eng: eng}, nil
}

// NewPoseTrackerFromModels creates a tracker over caller-owned detection and
// pose models and an engine context. det and pose may be the same model.
// None of the three can be destroyed while the tracker is live.
func (s *Session) NewPoseTrackerFromModels(det, pose *Model, ec *EngineContext) (*PoseTracker, error) {
	const op = "pose tracker create"
	eng, ok := s.engine.(PoseTrackerEngine)
	if !ok {
		return nil, &Error{Op: op, Kind: KindUnsupported, Detail: s.engine.Name()}
	}
	if det == nil || pose == nil || ec == nil {
		return nil, precondition(op, InvalidRaw, "detection model, pose model and engine context are required")
	}
	for _, dep := range []struct {
		h    *nativeHandle
		what string
	}{{det.h, "detection model"}, {pose.h, "pose model"}, {ec.h, "engine context"}} {
		if err := dep.h.owned(op, s, dep.what); err != nil {
			return nil, err
		}
	}

	// Engine context first, then models: the order AddModel uses.
	deps := []*guard{ec.h.g, det.h.g}
	if pose != det {
		deps = append(deps, pose.h.g)
	}
	for _, g := range deps {
		release, err := g.acquire(op, false)
		if err != nil {
			return nil, err
		}
		defer release()
	}
	for _, g := range deps {
		g.refs.Add(1)
	}
	drop := func() {
		for _, g := range deps {
			g.refs.Add(-1)
		}
	}

	h, err := s.createHandle(handleSpec{
		name:   "pose tracker",
		tier:   tierContext,
		kind:   kindContext,
		shared: s.shared(),
		create: func() (Raw, Status) {
			return eng.CreatePoseTrackerFromModels(det.h.g.raw, pose.h.g.raw, ec.h.g.raw)
		},
		free:     eng.DestroyPoseTracker,
		released: drop,
	})
	if err != nil {
		drop()
		return nil, err
	}
	return &PoseTracker{h: h, eng: eng}, nil
}

// ID returns the native identity of the pipeline.
func (t *PoseTracker) ID() ContextID { return t.h.id() }

// State returns the lifecycle state of the pipeline.
func (t *PoseTracker) State() Lifecycle { return t.h.g.lifecycle() }

// DefaultParams returns the engine's default parameter block.
func (t *PoseTracker) DefaultParams() PoseTrackerParams {
	return t.eng.DefaultPoseTrackerParams()
}

// NewState creates a tracking state from params. The params are validated
// first; the state must be destroyed before the tracker.
func (t *PoseTracker) NewState(params PoseTrackerParams) (*PoseState, error) {
	const op = "pose tracker create state"
	s := t.h.sess
	if err := params.Validate(); err != nil {
		return nil, &Error{Op: op, Kind: KindPrecondition, Handle: t.h.g.raw, Cause: err}
	}

	unlock, err := t.h.g.acquire(op, true)
	if err != nil {
		return nil, err
	}
	defer unlock()

	raw, st := t.eng.CreatePoseTrackerState(t.h.g.raw, params)
	if !st.OK() {
		s.log.Error("failed to create pose tracker state", zap.Int32("status", int32(st)))
		return nil, statusError(op, KindCreate, InvalidRaw, st)
	}
	if raw == InvalidRaw {
		s.log.Error("engine returned invalid handle", zap.String("op", op))
		return nil, &Error{Op: op, Kind: KindCreate, Detail: "engine returned the invalid handle"}
	}

	ps := &PoseState{tracker: t, g: newGuard(raw, kindState, false)}
	id, err := s.reg.add(tierState, op, raw, ps.Destroy)
	if err != nil {
		if errors.Is(err, ErrClosed) {
			t.eng.DestroyPoseTrackerState(raw)
		}
		return nil, err
	}
	ps.regID = id
	t.h.g.children.Add(1)
	s.log.Debug("created pose tracker state", zap.Uintptr("state", uintptr(raw)))
	return ps, nil
}

// ID returns the native identity of the state.
func (ps *PoseState) ID() StateID { return StateID(ps.g.raw) }

// State returns the lifecycle state of the state handle.
func (ps *PoseState) State() Lifecycle { return ps.g.lifecycle() }

// Destroy frees the state. It waits for any apply advancing it to finish.
func (ps *PoseState) Destroy() error {
	const op = "pose tracker destroy state"
	s := ps.tracker.h.sess
	if err := ps.g.destroy(op, ps.tracker.eng.DestroyPoseTrackerState); err != nil {
		s.log.Warn("destroy rejected", zap.String("op", op), zap.Error(err))
		return err
	}
	ps.tracker.h.g.children.Add(-1)
	s.reg.remove(ps.regID)
	s.log.Debug("destroyed pose tracker state", zap.Uintptr("state", uintptr(ps.g.raw)))
	return nil
}

// Apply advances states[i] with frames[i]. detect may be nil, meaning
// DetectAuto for every frame; otherwise it must have one entry per frame.
// Entry i of the result lists the targets tracked in frames[i].
//
// Each state is locked exclusively for the call, so two applies that share
// a state run one after the other. A state may appear at most once per batch.
func (t *PoseTracker) Apply(ctx context.Context, states []*PoseState, frames []Mat, detect []DetectMode) (*Result[[]PoseTarget], error) {
	const op = "pose tracker apply"
	raw := t.h.g.raw
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: op, Kind: KindCanceled, Handle: raw, Cause: err}
	}
	if len(states) != len(frames) {
		return nil, precondition(op, raw, "%d states for %d frames", len(states), len(frames))
	}
	if detect != nil && len(detect) != len(frames) {
		return nil, precondition(op, raw, "%d detect flags for %d frames", len(detect), len(frames))
	}
	imgs, err := encodeMats(op, raw, frames)
	if err != nil {
		return nil, err
	}

	seen := make(map[*PoseState]struct{}, len(states))
	for i, ps := range states {
		if ps == nil {
			return nil, precondition(op, raw, "state %d is nil", i)
		}
		if ps.tracker != t {
			return nil, precondition(op, raw, "state %d belongs to another tracker", i)
		}
		if _, dup := seen[ps]; dup {
			return nil, precondition(op, raw, "state %d appears twice in the batch", i)
		}
		seen[ps] = struct{}{}
	}

	flags := make([]int32, len(frames))
	for i := range flags {
		flags[i] = int32(DetectAuto)
		if detect != nil {
			flags[i] = int32(detect[i])
		}
	}

	unlock, err := t.h.g.acquire(op, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Lock states in a fixed order so overlapping batches cannot deadlock.
	order := make([]*PoseState, len(states))
	copy(order, states)
	sort.Slice(order, func(i, j int) bool { return order[i].g.raw < order[j].g.raw })
	for _, ps := range order {
		release, err := ps.g.acquire(op, true)
		if err != nil {
			return nil, err
		}
		defer release()
	}
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: op, Kind: KindCanceled, Handle: raw, Cause: err}
	}

	raws := make([]Raw, len(states))
	for i, ps := range states {
		raws[i] = ps.g.raw
	}
	res, st := t.eng.ApplyPoseTracker(raw, raws, imgs, flags)
	return adopt(t.h.sess, t.h.g, op, len(frames), res, st,
		counted(t.eng.DecodePoseTracker), t.eng.ReleasePoseTracker)
}

// ApplyFunc runs Apply, passes the targets to fn and releases the result.
func (t *PoseTracker) ApplyFunc(ctx context.Context, states []*PoseState, frames []Mat, detect []DetectMode,
	fn func([][]PoseTarget) error) error {
	r, err := t.Apply(ctx, states, frames, detect)
	return withResult(r, err, fn)
}

// Destroy frees the pipeline. All its states must be destroyed and all its
// results released first.
func (t *PoseTracker) Destroy() error { return t.h.destroy() }
