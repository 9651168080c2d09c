package fakeengine

import (
	"fmt"

	"github.com/csotherden/gorgonia-mmdeploy/mmdeploy"
)

const (
	kindClassifier   = "classifier"
	kindDetector     = "detector"
	kindSegmentor    = "segmentor"
	kindTextDetector = "text detector"
	kindPoseTracker  = "pose tracker"
	kindPoseState    = "pose state"
)

// decodeCounted copies the flat records and counts out of a live buffer.
func decodeCounted[T any](e *Engine, kind string, res mmdeploy.NativeResult) ([]T, []int32, error) {
	items, counts, err := e.lookup(kind, res)
	if err != nil {
		return nil, nil, err
	}
	flat, ok := items.([]T)
	if !ok {
		return nil, nil, fmt.Errorf("fakeengine: %s buffer holds %T", kind, items)
	}
	return append([]T(nil), flat...), append([]int32(nil), counts...), nil
}

// perImage builds flat records plus counts, calling rec for record k of
// image i.
func perImage[T any](imgs []mmdeploy.Image, rec func(i, k int, img mmdeploy.Image) T) func() (any, []int32) {
	return func() (any, []int32) {
		var flat []T
		counts := make([]int32, len(imgs))
		for i, img := range imgs {
			counts[i] = recordCount(img)
			for k := 0; k < int(counts[i]); k++ {
				flat = append(flat, rec(i, k, img))
			}
		}
		return flat, counts
	}
}

// Classifier

func (e *Engine) CreateClassifier(modelPath string, _ mmdeploy.Device) (mmdeploy.Raw, mmdeploy.Status) {
	return e.create(kindClassifier, modelPath)
}

// ApplyClassifier emits recordCount labels per image; label k of an image
// whose first byte is s has LabelID s*10+k.
func (e *Engine) ApplyClassifier(h mmdeploy.Raw, imgs []mmdeploy.Image) (mmdeploy.NativeResult, mmdeploy.Status) {
	return e.run(kindClassifier, imgs, []mmdeploy.Raw{h},
		perImage(imgs, func(_, k int, img mmdeploy.Image) mmdeploy.Label {
			return mmdeploy.Label{LabelID: seed(img)*10 + int32(k), Score: 1 / float32(k+1)}
		}))
}

func (e *Engine) DecodeClassifier(res mmdeploy.NativeResult) ([]mmdeploy.Label, []int32, error) {
	return decodeCounted[mmdeploy.Label](e, kindClassifier, res)
}

func (e *Engine) ReleaseClassifier(res mmdeploy.NativeResult) { e.release(kindClassifier, res) }

func (e *Engine) DestroyClassifier(h mmdeploy.Raw) { e.destroy(kindClassifier, h) }

// Detector

func (e *Engine) CreateDetector(modelPath string, _ mmdeploy.Device) (mmdeploy.Raw, mmdeploy.Status) {
	return e.create(kindDetector, modelPath)
}

// ApplyDetector emits boxes covering the whole image, labelled with its
// first byte. Every second box carries a one-pixel mask.
func (e *Engine) ApplyDetector(h mmdeploy.Raw, imgs []mmdeploy.Image) (mmdeploy.NativeResult, mmdeploy.Status) {
	return e.run(kindDetector, imgs, []mmdeploy.Raw{h},
		perImage(imgs, func(_, k int, img mmdeploy.Image) mmdeploy.Detection {
			d := mmdeploy.Detection{
				BBox:    mmdeploy.Rect{Right: float32(img.Width), Bottom: float32(img.Height)},
				LabelID: seed(img),
				Score:   1 / float32(k+1),
			}
			if k%2 == 1 {
				d.Mask = &mmdeploy.InstanceMask{Data: []byte{1}, Height: 1, Width: 1}
			}
			return d
		}))
}

func (e *Engine) DecodeDetector(res mmdeploy.NativeResult) ([]mmdeploy.Detection, []int32, error) {
	return decodeCounted[mmdeploy.Detection](e, kindDetector, res)
}

func (e *Engine) ReleaseDetector(res mmdeploy.NativeResult) { e.release(kindDetector, res) }

func (e *Engine) DestroyDetector(h mmdeploy.Raw) { e.destroy(kindDetector, h) }

// Text detector

func (e *Engine) CreateTextDetector(modelPath string, _ mmdeploy.Device) (mmdeploy.Raw, mmdeploy.Status) {
	return e.create(kindTextDetector, modelPath)
}

// ApplyTextDetector emits the image corners as a quadrilateral, scored
// with the image's first byte.
func (e *Engine) ApplyTextDetector(h mmdeploy.Raw, imgs []mmdeploy.Image) (mmdeploy.NativeResult, mmdeploy.Status) {
	return e.run(kindTextDetector, imgs, []mmdeploy.Raw{h},
		perImage(imgs, func(_, _ int, img mmdeploy.Image) mmdeploy.TextDetection {
			w, ht := float32(img.Width), float32(img.Height)
			return mmdeploy.TextDetection{
				BBox:  [4]mmdeploy.Point{{}, {X: w}, {X: w, Y: ht}, {Y: ht}},
				Score: float32(seed(img)),
			}
		}))
}

func (e *Engine) DecodeTextDetector(res mmdeploy.NativeResult) ([]mmdeploy.TextDetection, []int32, error) {
	return decodeCounted[mmdeploy.TextDetection](e, kindTextDetector, res)
}

func (e *Engine) ReleaseTextDetector(res mmdeploy.NativeResult) { e.release(kindTextDetector, res) }

func (e *Engine) DestroyTextDetector(h mmdeploy.Raw) { e.destroy(kindTextDetector, h) }

// Segmentor

func (e *Engine) CreateSegmentor(modelPath string, _ mmdeploy.Device) (mmdeploy.Raw, mmdeploy.Status) {
	return e.create(kindSegmentor, modelPath)
}

// ApplySegmentor emits one map per image with every pixel set to the
// image's first byte.
func (e *Engine) ApplySegmentor(h mmdeploy.Raw, imgs []mmdeploy.Image) (mmdeploy.NativeResult, mmdeploy.Status) {
	return e.run(kindSegmentor, imgs, []mmdeploy.Raw{h}, func() (any, []int32) {
		segs := make([]mmdeploy.Segmentation, len(imgs))
		for i, img := range imgs {
			mask := make([]int32, img.Height*img.Width)
			for j := range mask {
				mask[j] = seed(img)
			}
			segs[i] = mmdeploy.Segmentation{
				Mask:    mask,
				Height:  int32(img.Height),
				Width:   int32(img.Width),
				Classes: 256,
			}
		}
		return segs, nil
	})
}

func (e *Engine) DecodeSegmentor(res mmdeploy.NativeResult) ([]mmdeploy.Segmentation, error) {
	items, _, err := e.lookup(kindSegmentor, res)
	if err != nil {
		return nil, err
	}
	segs, ok := items.([]mmdeploy.Segmentation)
	if !ok {
		return nil, fmt.Errorf("fakeengine: segmentor buffer holds %T", items)
	}
	return append([]mmdeploy.Segmentation(nil), segs...), nil
}

func (e *Engine) ReleaseSegmentor(res mmdeploy.NativeResult) { e.release(kindSegmentor, res) }

func (e *Engine) DestroySegmentor(h mmdeploy.Raw) { e.destroy(kindSegmentor, h) }

// Pose tracker

func (e *Engine) CreatePoseTracker(detModelPath, poseModelPath string, _ mmdeploy.Device) (mmdeploy.Raw, mmdeploy.Status) {
	return e.create(kindPoseTracker, detModelPath, poseModelPath)
}

func (e *Engine) DefaultPoseTrackerParams() mmdeploy.PoseTrackerParams {
	return mmdeploy.DefaultPoseTrackerParams()
}

func (e *Engine) CreatePoseTrackerState(tracker mmdeploy.Raw, params mmdeploy.PoseTrackerParams) (mmdeploy.Raw, mmdeploy.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.handles[tracker]
	if !ok || t.destroyed || t.kind != kindPoseTracker {
		e.violate("state created on dead tracker %#x", uintptr(tracker))
		return mmdeploy.InvalidRaw, mmdeploy.StatusInvalidArg
	}
	r := e.alloc()
	e.handles[r] = &handle{kind: kindPoseState, tracker: tracker, params: params}
	return r, mmdeploy.StatusSuccess
}

// ApplyPoseTracker emits one target per frame. Its TargetID is the number
// of frames the state has seen so far, and its single keypoint sits at
// (first byte, detect flag).
func (e *Engine) ApplyPoseTracker(tracker mmdeploy.Raw, states []mmdeploy.Raw, imgs []mmdeploy.Image,
	detect []int32) (mmdeploy.NativeResult, mmdeploy.Status) {
	e.mu.Lock()
	if len(states) != len(imgs) || len(detect) != len(imgs) {
		e.violate("pose tracker apply with %d states, %d frames, %d flags", len(states), len(imgs), len(detect))
		e.mu.Unlock()
		return mmdeploy.NativeResult{}, mmdeploy.StatusInvalidArg
	}
	for _, s := range states {
		if h, ok := e.handles[s]; ok && h.tracker != tracker {
			e.violate("state %#x advanced by foreign tracker %#x", uintptr(s), uintptr(tracker))
		}
	}
	e.LastDetect = append([]int32(nil), detect...)
	e.mu.Unlock()

	rs := append([]mmdeploy.Raw{tracker}, states...)
	return e.run(kindPoseTracker, imgs, rs, func() (any, []int32) {
		e.mu.Lock()
		defer e.mu.Unlock()
		targets := make([]mmdeploy.PoseTarget, len(imgs))
		counts := make([]int32, len(imgs))
		for i, img := range imgs {
			st := e.handles[states[i]]
			st.frames++
			targets[i] = mmdeploy.PoseTarget{
				Keypoints: []mmdeploy.Point{{X: float32(seed(img)), Y: float32(detect[i])}},
				Scores:    []float32{1},
				BBox:      mmdeploy.Rect{Right: float32(img.Width), Bottom: float32(img.Height)},
				TargetID:  uint32(st.frames),
			}
			counts[i] = 1
		}
		return targets, counts
	})
}

func (e *Engine) DecodePoseTracker(res mmdeploy.NativeResult) ([]mmdeploy.PoseTarget, []int32, error) {
	return decodeCounted[mmdeploy.PoseTarget](e, kindPoseTracker, res)
}

func (e *Engine) ReleasePoseTracker(res mmdeploy.NativeResult) { e.release(kindPoseTracker, res) }

func (e *Engine) DestroyPoseTrackerState(state mmdeploy.Raw) { e.destroy(kindPoseState, state) }

// DestroyPoseTracker records a violation if the tracker still has live
// states.
func (e *Engine) DestroyPoseTracker(h mmdeploy.Raw) {
	e.mu.Lock()
	for r, st := range e.handles {
		if st.kind == kindPoseState && st.tracker == h && !st.destroyed {
			e.violate("pose tracker %#x destroyed before state %#x", uintptr(h), uintptr(r))
		}
	}
	e.mu.Unlock()
	e.destroy(kindPoseTracker, h)
}

var (
	_ mmdeploy.ClassifierEngine   = (*Engine)(nil)
	_ mmdeploy.DetectorEngine     = (*Engine)(nil)
	_ mmdeploy.SegmentorEngine    = (*Engine)(nil)
	_ mmdeploy.TextDetectorEngine = (*Engine)(nil)
	_ mmdeploy.PoseTrackerEngine  = (*Engine)(nil)
)
