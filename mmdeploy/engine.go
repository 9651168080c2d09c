package mmdeploy

// NativeResult addresses a result allocation owned by an engine: the record
// array, the parallel per-input count array (zero when the capability has
// exactly one record per input), and the number of inputs the apply saw.
type NativeResult struct {
	Data   Raw
	Counts Raw
	Len    int
}

// Engine is the outbound side of the binding: the inference runtime the
// verbs are forwarded to. Capabilities are discovered by asserting the
// engine against ClassifierEngine, DetectorEngine and the others below.
type Engine interface {
	// Name identifies the engine in logs.
	Name() string
	// Reentrant reports whether one context may run concurrent applies.
	// When false the binding serializes applies per handle.
	Reentrant() bool
}

// ClassifierEngine forwards the classifier verbs.
// Decode returns the flat record array and one count per input.
type ClassifierEngine interface {
	Engine
	CreateClassifier(modelPath string, dev Device) (Raw, Status)
	ApplyClassifier(h Raw, imgs []Image) (NativeResult, Status)
	DecodeClassifier(res NativeResult) ([]Label, []int32, error)
	ReleaseClassifier(res NativeResult)
	DestroyClassifier(h Raw)
}

// DetectorEngine forwards the object detector verbs.
type DetectorEngine interface {
	Engine
	CreateDetector(modelPath string, dev Device) (Raw, Status)
	ApplyDetector(h Raw, imgs []Image) (NativeResult, Status)
	DecodeDetector(res NativeResult) ([]Detection, []int32, error)
	ReleaseDetector(res NativeResult)
	DestroyDetector(h Raw)
}

// SegmentorEngine forwards the segmentor verbs. Segmentors emit exactly one
// record per input, so NativeResult.Counts is unused.
type SegmentorEngine interface {
	Engine
	CreateSegmentor(modelPath string, dev Device) (Raw, Status)
	ApplySegmentor(h Raw, imgs []Image) (NativeResult, Status)
	DecodeSegmentor(res NativeResult) ([]Segmentation, error)
	ReleaseSegmentor(res NativeResult)
	DestroySegmentor(h Raw)
}

// TextDetectorEngine forwards the text detector verbs.
type TextDetectorEngine interface {
	Engine
	CreateTextDetector(modelPath string, dev Device) (Raw, Status)
	ApplyTextDetector(h Raw, imgs []Image) (NativeResult, Status)
	DecodeTextDetector(res NativeResult) ([]TextDetection, []int32, error)
	ReleaseTextDetector(res NativeResult)
	DestroyTextDetector(h Raw)
}

// ResourceEngine forwards the verbs for the resources a pipeline can be
// assembled from. An engine context collects a device plus the models and
// schedulers added to it; name may be empty.
type ResourceEngine interface {
	Engine
	CreateModel(path string) (Raw, Status)
	DestroyModel(h Raw)
	CreateEngineContext(dev Device) (Raw, Status)
	AddContextModel(ctx Raw, name string, model Raw) Status
	AddContextScheduler(ctx Raw, name string, sched Raw) Status
	DestroyEngineContext(h Raw)
	CreateThreadPool(threads int) (Raw, Status)
	CreateThread() (Raw, Status)
	DestroyScheduler(h Raw)
}

// PoseTrackerEngine forwards the pose tracker verbs. Apply advances one
// state per frame; states[i], imgs[i] and detect[i] describe element i.
//
// CreatePoseTrackerFromModels builds a tracker over caller-owned models and
// engine context, which must outlive it.
type PoseTrackerEngine interface {
	Engine
	CreatePoseTracker(detModelPath, poseModelPath string, dev Device) (Raw, Status)
	CreatePoseTrackerFromModels(det, pose, ctx Raw) (Raw, Status)
	DefaultPoseTrackerParams() PoseTrackerParams
	CreatePoseTrackerState(tracker Raw, params PoseTrackerParams) (Raw, Status)
	ApplyPoseTracker(tracker Raw, states []Raw, imgs []Image, detect []int32) (NativeResult, Status)
	DecodePoseTracker(res NativeResult) ([]PoseTarget, []int32, error)
	ReleasePoseTracker(res NativeResult)
	DestroyPoseTrackerState(state Raw)
	DestroyPoseTracker(h Raw)
}
