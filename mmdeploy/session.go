package mmdeploy

import (
	"errors"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Session binds an Engine to the handles created through it. It tracks
// every live handle and unreleased result so Close can tear them down.
// A Session is safe for concurrent use.
type Session struct {
	engine    Engine
	log       *zap.Logger
	reg       *registry
	serialize bool
}

// NewSession creates a session over e.
func NewSession(e Engine, opts ...Option) *Session {
	var options sessionOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = Logger()
	}
	return &Session{
		engine:    e,
		log:       options.logger.With(zap.String("engine", e.Name())),
		reg:       newRegistry(),
		serialize: options.serialize,
	}
}

// Engine returns the engine the session forwards to.
func (s *Session) Engine() Engine { return s.engine }

// LiveHandles returns the number of live handles of every kind: contexts,
// states, engine contexts, models and schedulers.
func (s *Session) LiveHandles() int {
	return s.reg.count(tierState) + s.reg.count(tierContext) +
		s.reg.count(tierEngineContext) + s.reg.count(tierResource)
}

// OutstandingResults returns the number of results not yet released.
func (s *Session) OutstandingResults() int {
	return s.reg.count(tierResult)
}

// Close releases every outstanding result, then destroys every live state,
// context, engine context, model and scheduler in that order, newest first
// within each kind. Later calls, and creates after Close, fail with
// ErrClosed. Teardown errors are combined; teardown continues past them.
func (s *Session) Close() error {
	if s.reg.isClosed() {
		return &Error{Op: "session close", Kind: KindClosed}
	}
	var err error
	for _, e := range s.reg.drain() {
		s.log.Debug("closing leftover resource",
			zap.String("op", e.name),
			zap.Uintptr("handle", uintptr(e.raw)))
		err = multierr.Append(err, e.close())
	}
	return err
}

func (s *Session) shared() bool {
	return s.engine.Reentrant() && !s.serialize
}

// nativeHandle is the binding-side wrapper every capability and resource
// embeds.
type nativeHandle struct {
	sess     *Session
	g        *guard
	free     func(Raw)
	released func()
	name     string
	regID    uint64
}

// handleSpec describes one create verb and how to undo it.
type handleSpec struct {
	name   string
	tier   tier
	kind   resourceKind
	shared bool
	create func() (Raw, Status)
	free   func(Raw)
	// released runs after a successful destroy.
	released func()
}

// createContext runs a create verb for an inference context and adopts its
// handle.
func (s *Session) createContext(name string, create func() (Raw, Status), free func(Raw)) (*nativeHandle, error) {
	return s.createHandle(handleSpec{
		name:   name,
		tier:   tierContext,
		kind:   kindContext,
		shared: s.shared(),
		create: create,
		free:   free,
	})
}

// createHandle runs hs.create and adopts the handle. On any failure no
// handle escapes and nothing stays registered.
func (s *Session) createHandle(hs handleSpec) (*nativeHandle, error) {
	op := hs.name + " create"
	if s.reg.isClosed() {
		return nil, &Error{Op: op, Kind: KindClosed}
	}

	raw, st := hs.create()
	if !st.OK() {
		s.log.Error("failed to create "+hs.name, zap.Int32("status", int32(st)))
		return nil, statusError(op, KindCreate, InvalidRaw, st)
	}
	if raw == InvalidRaw {
		s.log.Error("engine returned invalid handle", zap.String("op", op))
		return nil, &Error{Op: op, Kind: KindCreate, Detail: "engine returned the invalid handle"}
	}

	h := &nativeHandle{
		sess:     s,
		g:        newGuard(raw, hs.kind, hs.shared),
		free:     hs.free,
		released: hs.released,
		name:     hs.name,
	}
	id, err := s.reg.add(hs.tier, op, raw, h.destroy)
	if err != nil {
		if errors.Is(err, ErrClosed) {
			hs.free(raw)
		}
		s.log.Error("rejecting created handle", zap.String("op", op), zap.Error(err))
		return nil, err
	}
	h.regID = id
	s.log.Debug("created "+hs.name, zap.Uintptr("handle", uintptr(raw)))
	return h, nil
}

func (h *nativeHandle) destroy() error {
	op := h.name + " destroy"
	if err := h.g.destroy(op, h.free); err != nil {
		h.sess.log.Warn("destroy rejected", zap.String("op", op), zap.Error(err))
		return err
	}
	if h.released != nil {
		h.released()
	}
	h.sess.reg.remove(h.regID)
	h.sess.log.Debug("destroyed "+h.name, zap.Uintptr("handle", uintptr(h.g.raw)))
	return nil
}

// owned rejects handles created through another session.
func (h *nativeHandle) owned(op string, s *Session, what string) error {
	if h.sess != s {
		return precondition(op, h.g.raw, "%s belongs to another session", what)
	}
	return nil
}

func (h *nativeHandle) id() ContextID { return ContextID(h.g.raw) }
