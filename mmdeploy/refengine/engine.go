// Package refengine is a pure-Go mmdeploy.Engine. It serves classifiers
// and segmentors from small JSON artifacts, computing with gorgonia, so the
// binding can run end to end without the native SDK.
package refengine

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/csotherden/gorgonia-mmdeploy/mmdeploy"
)

// Engine is the reference engine. It is safe for concurrent use across
// handles; a single handle must not run two applies at once, which the
// binding guarantees because Reentrant reports false.
type Engine struct {
	eng  *Eng
	log  *zap.Logger
	mu   sync.Mutex
	next mmdeploy.Raw

	classifiers map[mmdeploy.Raw]*classifier
	segmentors  map[mmdeploy.Raw]*segmentor
	results     map[mmdeploy.Raw]any
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. Defaults to mmdeploy.Logger().
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New returns a reference engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		eng:         NewEng(),
		next:        0x10,
		classifiers: make(map[mmdeploy.Raw]*classifier),
		segmentors:  make(map[mmdeploy.Raw]*segmentor),
		results:     make(map[mmdeploy.Raw]any),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = mmdeploy.Logger()
	}
	e.log = e.log.Named("refengine")
	return e
}

func (e *Engine) Name() string    { return "ref" }
func (e *Engine) Reentrant() bool { return false }

// LabelNames returns the class names of a classifier, or nil if its
// artifact has none.
func (e *Engine) LabelNames(h mmdeploy.Raw) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if m, ok := e.classifiers[h]; ok {
		return m.art.Labels
	}
	return nil
}

// allocLocked hands out a fresh identity. e.mu must be held.
func (e *Engine) allocLocked() mmdeploy.Raw {
	r := e.next
	e.next += 0x10
	return r
}

func checkDevice(dev mmdeploy.Device) mmdeploy.Status {
	if !strings.EqualFold(dev.Name, "cpu") {
		return mmdeploy.StatusNotSupported
	}
	return mmdeploy.StatusSuccess
}

// store keeps a result until release and returns its address.
func (e *Engine) store(items any, counts []int32, n int) mmdeploy.NativeResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	res := mmdeploy.NativeResult{Data: e.allocLocked(), Len: n}
	e.results[res.Data] = items
	if counts != nil {
		res.Counts = e.allocLocked()
		e.results[res.Counts] = counts
	}
	return res
}

func (e *Engine) load(res mmdeploy.NativeResult) (any, []int32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	items, ok := e.results[res.Data]
	if !ok {
		return nil, nil, fmt.Errorf("refengine: no result at %#x", uintptr(res.Data))
	}
	var counts []int32
	if res.Counts != mmdeploy.InvalidRaw {
		counts, _ = e.results[res.Counts].([]int32)
	}
	return items, counts, nil
}

func (e *Engine) release(res mmdeploy.NativeResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.results[res.Data]; !ok {
		e.log.Warn("release of unknown result", zap.Uintptr("result", uintptr(res.Data)))
		return
	}
	delete(e.results, res.Data)
	delete(e.results, res.Counts)
}

// CreateClassifier loads a ClassifierArtifact from modelPath.
func (e *Engine) CreateClassifier(modelPath string, dev mmdeploy.Device) (mmdeploy.Raw, mmdeploy.Status) {
	if st := checkDevice(dev); !st.OK() {
		return mmdeploy.InvalidRaw, st
	}
	var art ClassifierArtifact
	if st, err := loadArtifact(modelPath, &art); !st.OK() {
		e.log.Error("failed to load classifier", zap.String("path", modelPath), zap.Error(err))
		return mmdeploy.InvalidRaw, st
	}
	m, err := newClassifier(art)
	if err != nil {
		e.log.Error("failed to build classifier graph", zap.String("path", modelPath), zap.Error(err))
		return mmdeploy.InvalidRaw, mmdeploy.StatusFail
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.allocLocked()
	e.classifiers[h] = m
	return h, mmdeploy.StatusSuccess
}

func (e *Engine) classifier(h mmdeploy.Raw) *classifier {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.classifiers[h]
}

// ApplyClassifier scores every image and keeps the top labels of each.
func (e *Engine) ApplyClassifier(h mmdeploy.Raw, imgs []mmdeploy.Image) (mmdeploy.NativeResult, mmdeploy.Status) {
	m := e.classifier(h)
	if m == nil {
		return mmdeploy.NativeResult{}, mmdeploy.StatusInvalidArg
	}
	var flat []mmdeploy.Label
	counts := make([]int32, len(imgs))
	for i, img := range imgs {
		p, err := m.scores(e.eng, img)
		if err != nil {
			e.log.Error("classifier apply failed", zap.Int("image", i), zap.Error(err))
			return mmdeploy.NativeResult{}, mmdeploy.StatusInvalidArg
		}
		labels := topK(p, m.art.TopK)
		counts[i] = int32(len(labels))
		flat = append(flat, labels...)
	}
	return e.store(flat, counts, len(imgs)), mmdeploy.StatusSuccess
}

func (e *Engine) DecodeClassifier(res mmdeploy.NativeResult) ([]mmdeploy.Label, []int32, error) {
	items, counts, err := e.load(res)
	if err != nil {
		return nil, nil, err
	}
	labels, ok := items.([]mmdeploy.Label)
	if !ok {
		return nil, nil, fmt.Errorf("refengine: result %#x holds %T", uintptr(res.Data), items)
	}
	return labels, counts, nil
}

func (e *Engine) ReleaseClassifier(res mmdeploy.NativeResult) { e.release(res) }

func (e *Engine) DestroyClassifier(h mmdeploy.Raw) {
	e.mu.Lock()
	m := e.classifiers[h]
	delete(e.classifiers, h)
	e.mu.Unlock()
	if m == nil {
		e.log.Warn("destroy of unknown classifier", zap.Uintptr("handle", uintptr(h)))
		return
	}
	if err := m.close(); err != nil {
		e.log.Warn("failed to close classifier machine", zap.Error(err))
	}
}

// CreateSegmentor loads a SegmentorArtifact from modelPath.
func (e *Engine) CreateSegmentor(modelPath string, dev mmdeploy.Device) (mmdeploy.Raw, mmdeploy.Status) {
	if st := checkDevice(dev); !st.OK() {
		return mmdeploy.InvalidRaw, st
	}
	var art SegmentorArtifact
	if st, err := loadArtifact(modelPath, &art); !st.OK() {
		e.log.Error("failed to load segmentor", zap.String("path", modelPath), zap.Error(err))
		return mmdeploy.InvalidRaw, st
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.allocLocked()
	e.segmentors[h] = &segmentor{art: art}
	return h, mmdeploy.StatusSuccess
}

// ApplySegmentor emits one class map per image.
func (e *Engine) ApplySegmentor(h mmdeploy.Raw, imgs []mmdeploy.Image) (mmdeploy.NativeResult, mmdeploy.Status) {
	e.mu.Lock()
	m := e.segmentors[h]
	e.mu.Unlock()
	if m == nil {
		return mmdeploy.NativeResult{}, mmdeploy.StatusInvalidArg
	}
	segs := make([]mmdeploy.Segmentation, len(imgs))
	for i, img := range imgs {
		seg, err := m.segment(e.eng, img)
		if err != nil {
			e.log.Error("segmentor apply failed", zap.Int("image", i), zap.Error(err))
			return mmdeploy.NativeResult{}, mmdeploy.StatusInvalidArg
		}
		segs[i] = seg
	}
	return e.store(segs, nil, len(imgs)), mmdeploy.StatusSuccess
}

func (e *Engine) DecodeSegmentor(res mmdeploy.NativeResult) ([]mmdeploy.Segmentation, error) {
	items, _, err := e.load(res)
	if err != nil {
		return nil, err
	}
	segs, ok := items.([]mmdeploy.Segmentation)
	if !ok {
		return nil, fmt.Errorf("refengine: result %#x holds %T", uintptr(res.Data), items)
	}
	return segs, nil
}

func (e *Engine) ReleaseSegmentor(res mmdeploy.NativeResult) { e.release(res) }

func (e *Engine) DestroySegmentor(h mmdeploy.Raw) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.segmentors[h]; !ok {
		e.log.Warn("destroy of unknown segmentor", zap.Uintptr("handle", uintptr(h)))
		return
	}
	delete(e.segmentors, h)
}

var (
	_ mmdeploy.ClassifierEngine = (*Engine)(nil)
	_ mmdeploy.SegmentorEngine  = (*Engine)(nil)
)
