package mmdeploy

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Result owns the engine allocation produced by one apply. Item i
// corresponds to input i of that apply.
//
// Items are decoded from engine memory on first read and copied into Go
// memory, so values already read stay valid after Release. The Result itself
// refuses reads once released. Release must be called exactly once; a second
// call is reported as a precondition error and does not reach the engine.
type Result[E any] struct {
	mu       sync.Mutex
	native   NativeResult
	decode   func(NativeResult) ([]E, error)
	free     func(NativeResult)
	owner    *guard
	log      *zap.Logger
	items    []E
	op       string
	traceID  string
	regID    uint64
	untrack  func(uint64)
	released bool
}

// Len returns the number of inputs the result covers.
func (r *Result[E]) Len() int { return r.native.Len }

// TraceID identifies the apply that produced r in logs.
func (r *Result[E]) TraceID() string { return r.traceID }

// Released reports whether Release has been called.
func (r *Result[E]) Released() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

// Items returns one entry per input, in input order.
func (r *Result[E]) Items() ([]E, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return nil, precondition(r.op+" read", r.native.Data, "result already released")
	}
	if r.items == nil {
		items, err := r.decode(r.native)
		if err != nil {
			r.log.Error("failed to decode result",
				zap.String("op", r.op),
				zap.String("trace_id", r.traceID),
				zap.Error(err))
			return nil, &Error{Op: r.op + " read", Kind: KindDecode, Handle: r.native.Data, Cause: err}
		}
		r.items = items
	}
	return r.items, nil
}

// At returns the entry for input i.
func (r *Result[E]) At(i int) (E, error) {
	var zero E
	if i < 0 || i >= r.native.Len {
		return zero, precondition(r.op+" read", r.native.Data, "index %d out of range [0,%d)", i, r.native.Len)
	}
	items, err := r.Items()
	if err != nil {
		return zero, err
	}
	return items[i], nil
}

// Release frees the engine allocation.
func (r *Result[E]) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		r.log.Warn("result released twice",
			zap.String("op", r.op),
			zap.String("trace_id", r.traceID))
		return precondition(r.op+" release", r.native.Data, "result already released")
	}
	r.released = true
	r.items = nil
	r.free(r.native)
	r.owner.outstanding.Add(-1)
	r.untrack(r.regID)
	return nil
}

// adopt turns the outcome of an apply verb into a Result. It must run while
// the owner guard is held so a concurrent destroy sees the new result.
func adopt[E any](s *Session, owner *guard, op string, n int, res NativeResult, st Status,
	decode func(NativeResult) ([]E, error), free func(NativeResult)) (*Result[E], error) {
	if !st.OK() {
		s.log.Error("failed to apply",
			zap.String("op", op),
			zap.Uintptr("handle", uintptr(owner.raw)),
			zap.Int32("status", int32(st)))
		return nil, statusError(op, KindApply, owner.raw, st)
	}
	if res.Len != n {
		free(res)
		s.log.Error("engine result length mismatch",
			zap.String("op", op),
			zap.Int("inputs", n),
			zap.Int("results", res.Len))
		return nil, &Error{Op: op, Kind: KindDecode, Handle: owner.raw,
			Detail: "result length does not match batch size"}
	}

	r := &Result[E]{
		native:  res,
		decode:  decode,
		free:    free,
		owner:   owner,
		log:     s.log,
		op:      op,
		traceID: uuid.New().String(),
		untrack: s.reg.remove,
	}
	id, err := s.reg.add(tierResult, op, res.Data, r.Release)
	if err != nil {
		free(res)
		return nil, err
	}
	r.regID = id
	owner.outstanding.Add(1)
	s.log.Debug("applied",
		zap.String("op", op),
		zap.String("trace_id", r.traceID),
		zap.Int("batch", n))
	return r, nil
}

// applyContext is the batched apply shared by every single-context
// capability: validate, lock, call, adopt. ctx is checked again once the
// lock is held, since waiting for it can take as long as another apply.
func applyContext[E any](ctx context.Context, h *nativeHandle, mats []Mat,
	call func(Raw, []Image) (NativeResult, Status),
	decode func(NativeResult) ([]E, error),
	free func(NativeResult)) (*Result[E], error) {
	op := h.name + " apply"
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: op, Kind: KindCanceled, Handle: h.g.raw, Cause: err}
	}
	imgs, err := encodeMats(op, h.g.raw, mats)
	if err != nil {
		return nil, err
	}

	unlock, err := h.g.acquire(op, false)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: op, Kind: KindCanceled, Handle: h.g.raw, Cause: err}
	}

	res, st := call(h.g.raw, imgs)
	return adopt(h.sess, h.g, op, len(mats), res, st, decode, free)
}

// withResult hands the items of r to fn and releases r on every path.
func withResult[E any](r *Result[E], err error, fn func([]E) error) (rerr error) {
	if err != nil {
		return err
	}
	defer func() {
		rerr = multierr.Append(rerr, r.Release())
	}()

	items, err := r.Items()
	if err != nil {
		return err
	}
	return fn(items)
}
