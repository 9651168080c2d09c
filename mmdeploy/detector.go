package mmdeploy

import "context"

// Detector is a live object detection context.
type Detector struct {
	h   *nativeHandle
	eng DetectorEngine
}

// NewDetector creates a detector from the model at modelPath on dev.
func (s *Session) NewDetector(modelPath string, dev Device) (*Detector, error) {
	eng, ok := s.engine.(DetectorEngine)
	if !ok {
		return nil, &Error{Op: "detector create", Kind: KindUnsupported, Detail: s.engine.Name()}
	}
	if err := dev.validate(); err != nil {
		return nil, &Error{Op: "detector create", Kind: KindPrecondition, Cause: err}
	}
	h, err := s.createContext("detector", func() (Raw, Status) {
		return eng.CreateDetector(modelPath, dev)
	}, eng.DestroyDetector)
	if err != nil {
		return nil, err
	}
	return &Detector{h: h, eng: eng}, nil
}

// ID returns the native identity of the context.
func (d *Detector) ID() ContextID { return d.h.id() }

// State returns the lifecycle state of the context.
func (d *Detector) State() Lifecycle { return d.h.g.lifecycle() }

// Apply runs object detection on every mat. Entry i of the result lists the
// detections found in mats[i].
func (d *Detector) Apply(ctx context.Context, mats []Mat) (*Result[[]Detection], error) {
	return applyContext(ctx, d.h, mats, d.eng.ApplyDetector,
		counted(d.eng.DecodeDetector), d.eng.ReleaseDetector)
}

// ApplyFunc runs Apply, passes the detections to fn and releases the result.
func (d *Detector) ApplyFunc(ctx context.Context, mats []Mat, fn func([][]Detection) error) error {
	r, err := d.Apply(ctx, mats)
	return withResult(r, err, fn)
}

// Destroy frees the context.
func (d *Detector) Destroy() error { return d.h.destroy() }
