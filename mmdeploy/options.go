package mmdeploy

import "go.uber.org/zap"

// Option configures a Session.
type Option func(*sessionOptions)

type sessionOptions struct {
	logger    *zap.Logger
	serialize bool
}

// WithLogger sets the logger for the session. Defaults to Logger().
func WithLogger(l *zap.Logger) Option {
	return func(o *sessionOptions) {
		o.logger = l
	}
}

// WithSerializedApply forces one apply at a time per handle even when the
// engine reports itself reentrant.
func WithSerializedApply() Option {
	return func(o *sessionOptions) {
		o.serialize = true
	}
}
