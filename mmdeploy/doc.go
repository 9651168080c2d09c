// Package mmdeploy binds Go callers to a native computer-vision inference
// SDK: classifiers, object detectors, segmentors, text detectors and pose
// trackers.
//
// Every capability follows the same resource protocol:
//
//	Create -> Configure (optional) -> Apply* -> Release per apply -> Destroy
//
// Basic usage:
//
//	eng, err := mmdeploy.NewNativeEngine()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sess := mmdeploy.NewSession(eng, mmdeploy.WithLogger(zapLogger))
//	defer sess.Close()
//
//	cls, err := sess.NewClassifier("/models/resnet18", mmdeploy.CPU)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cls.Destroy()
//
//	res, err := cls.Apply(ctx, mats)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	labels, err := res.Items() // labels[i] belongs to mats[i]
//	...
//	res.Release()
//
// # Ownership
//
// A handle is live from a successful create until its Destroy. Destroy
// refuses handles with unreleased results (and trackers with live states),
// and a second Destroy reports a precondition error instead of reaching the
// engine. Apply on a destroyed handle fails the same way.
//
// Pipelines can also be assembled from separately owned resources, as in
// the SDK's own demos: a Model loaded once, a Scheduler (thread or thread
// pool) and an EngineContext on a device that models and schedulers are
// added to. NewPoseTrackerFromModels builds a tracker on them. A resource
// cannot be destroyed while a live context or pipeline references it, and
// Session.Close tears pipelines down before the resources beneath them.
//
// Each Apply returns a Result that owns engine memory until Release. Release
// is guarded: it frees at most once, and reads after Release fail. ApplyFunc
// wraps Apply and Release for callers that only need the items in a scope.
//
// # Concurrency
//
// All verbs are synchronous. Each handle carries a read/write lock: applies
// share it when the engine reports itself reentrant and take it exclusively
// otherwise; Destroy always takes it exclusively, so it waits for in-flight
// applies. Pose tracker states are always locked exclusively, in a fixed
// order, for the duration of the apply that advances them.
//
// # Engines
//
// NewNativeEngine is backed by the mmdeploy C API when built with
// "-tags mmdeploy" and cgo; otherwise it returns ErrUnavailable. The
// refengine package provides a pure-Go engine, and fakeengine an
// instrumented one for tests.
package mmdeploy
