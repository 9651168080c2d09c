package mmdeploy

import "context"

// Segmentor is a live semantic segmentation context.
type Segmentor struct {
	h   *nativeHandle
	eng SegmentorEngine
}

// NewSegmentor creates a segmentor from the model at modelPath on dev.
func (s *Session) NewSegmentor(modelPath string, dev Device) (*Segmentor, error) {
	eng, ok := s.engine.(SegmentorEngine)
	if !ok {
		return nil, &Error{Op: "segmentor create", Kind: KindUnsupported, Detail: s.engine.Name()}
	}
	if err := dev.validate(); err != nil {
		return nil, &Error{Op: "segmentor create", Kind: KindPrecondition, Cause: err}
	}
	h, err := s.createContext("segmentor", func() (Raw, Status) {
		return eng.CreateSegmentor(modelPath, dev)
	}, eng.DestroySegmentor)
	if err != nil {
		return nil, err
	}
	return &Segmentor{h: h, eng: eng}, nil
}

// ID returns the native identity of the context.
func (sg *Segmentor) ID() ContextID { return sg.h.id() }

// State returns the lifecycle state of the context.
func (sg *Segmentor) State() Lifecycle { return sg.h.g.lifecycle() }

// Apply segments every mat; entry i is the segmentation of mats[i].
func (sg *Segmentor) Apply(ctx context.Context, mats []Mat) (*Result[Segmentation], error) {
	return applyContext(ctx, sg.h, mats, sg.eng.ApplySegmentor,
		single(sg.eng.DecodeSegmentor), sg.eng.ReleaseSegmentor)
}

// ApplyFunc runs Apply, passes the segmentations to fn and releases the result.
func (sg *Segmentor) ApplyFunc(ctx context.Context, mats []Mat, fn func([]Segmentation) error) error {
	r, err := sg.Apply(ctx, mats)
	return withResult(r, err, fn)
}

// Destroy frees the context.
func (sg *Segmentor) Destroy() error { return sg.h.destroy() }
