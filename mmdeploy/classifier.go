package mmdeploy

import "context"

// Classifier is a live classification context.
type Classifier struct {
	h   *nativeHandle
	eng ClassifierEngine
}

// NewClassifier creates a classifier from the model at modelPath on dev.
// On failure it returns a nil Classifier and an error carrying the engine
// status; nothing is left allocated.
func (s *Session) NewClassifier(modelPath string, dev Device) (*Classifier, error) {
	eng, ok := s.engine.(ClassifierEngine)
	if !ok {
		return nil, &Error{Op: "classifier create", Kind: KindUnsupported, Detail: s.engine.Name()}
	}
	if err := dev.validate(); err != nil {
		return nil, &Error{Op: "classifier create", Kind: KindPrecondition, Cause: err}
	}
	h, err := s.createContext("classifier", func() (Raw, Status) {
		return eng.CreateClassifier(modelPath, dev)
	}, eng.DestroyClassifier)
	if err != nil {
		return nil, err
	}
	return &Classifier{h: h, eng: eng}, nil
}

// ID returns the native identity of the context.
func (c *Classifier) ID() ContextID { return c.h.id() }

// State returns the lifecycle state of the context.
func (c *Classifier) State() Lifecycle { return c.h.g.lifecycle() }

// Apply classifies every mat. Entry i of the result lists the labels for
// mats[i]. The caller must Release the result.
func (c *Classifier) Apply(ctx context.Context, mats []Mat) (*Result[[]Label], error) {
	return applyContext(ctx, c.h, mats, c.eng.ApplyClassifier,
		counted(c.eng.DecodeClassifier), c.eng.ReleaseClassifier)
}

// ApplyFunc runs Apply, passes the labels to fn and releases the result.
func (c *Classifier) ApplyFunc(ctx context.Context, mats []Mat, fn func([][]Label) error) error {
	r, err := c.Apply(ctx, mats)
	return withResult(r, err, fn)
}

// Destroy frees the context. Every result must be released first.
func (c *Classifier) Destroy() error { return c.h.destroy() }
