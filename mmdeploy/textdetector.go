package mmdeploy

import "context"

// TextDetector is a live text detection context.
type TextDetector struct {
	h   *nativeHandle
	eng TextDetectorEngine
}

// NewTextDetector creates a text detector from the model at modelPath on dev.
func (s *Session) NewTextDetector(modelPath string, dev Device) (*TextDetector, error) {
	eng, ok := s.engine.(TextDetectorEngine)
	if !ok {
		return nil, &Error{Op: "text detector create", Kind: KindUnsupported, Detail: s.engine.Name()}
	}
	if err := dev.validate(); err != nil {
		return nil, &Error{Op: "text detector create", Kind: KindPrecondition, Cause: err}
	}
	h, err := s.createContext("text detector", func() (Raw, Status) {
		return eng.CreateTextDetector(modelPath, dev)
	}, eng.DestroyTextDetector)
	if err != nil {
		return nil, err
	}
	return &TextDetector{h: h, eng: eng}, nil
}

// ID returns the native identity of the context.
func (d *TextDetector) ID() ContextID { return d.h.id() }

// State returns the lifecycle state of the context.
func (d *TextDetector) State() Lifecycle { return d.h.g.lifecycle() }

// Apply runs text detection on every mat. Entry i of the result lists the
// text regions found in mats[i].
func (d *TextDetector) Apply(ctx context.Context, mats []Mat) (*Result[[]TextDetection], error) {
	return applyContext(ctx, d.h, mats, d.eng.ApplyTextDetector,
		counted(d.eng.DecodeTextDetector), d.eng.ReleaseTextDetector)
}

// ApplyFunc runs Apply, passes the text regions to fn and releases the result.
func (d *TextDetector) ApplyFunc(ctx context.Context, mats []Mat, fn func([][]TextDetection) error) error {
	r, err := d.Apply(ctx, mats)
	return withResult(r, err, fn)
}

// Destroy frees the context.
func (d *TextDetector) Destroy() error { return d.h.destroy() }
