//go:build !mmdeploy || !cgo

// engine_other.go
//
// Stub for builds without the mmdeploy SDK (no "mmdeploy" build tag, or cgo
// disabled). Callers fall back to a pure-Go engine.

package mmdeploy

// NewNativeEngine reports that the native SDK is not linked into this build.
func NewNativeEngine() (Engine, error) {
	return nil, &Error{Op: "native engine", Kind: KindUnavailable,
		Detail: "built without -tags mmdeploy or without cgo"}
}
