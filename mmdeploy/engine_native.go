//go:build mmdeploy && cgo

// engine_native.go
//
// Engine backed by the mmdeploy C API. Point CGO_CFLAGS/CGO_LDFLAGS at the
// SDK install (include/ and lib/) and build with -tags mmdeploy.

package mmdeploy

/*
#cgo LDFLAGS: -lmmdeploy
#include <stdlib.h>
#include "mmdeploy/common.h"
#include "mmdeploy/model.h"
#include "mmdeploy/executor.h"
#include "mmdeploy/classifier.h"
#include "mmdeploy/detector.h"
#include "mmdeploy/segmentor.h"
#include "mmdeploy/text_detector.h"
#include "mmdeploy/pose_tracker.h"
*/
import "C"

import (
	"runtime"
	"sync"
	"unsafe"
)

type trackerDeps struct {
	det  C.mmdeploy_model_t
	pose C.mmdeploy_model_t
	ctx  C.mmdeploy_context_t
}

type nativeEngine struct {
	mu       sync.Mutex
	trackers map[Raw]trackerDeps
	sigmas   map[Raw]unsafe.Pointer
}

// NewNativeEngine returns the engine backed by the linked mmdeploy SDK.
func NewNativeEngine() (Engine, error) {
	return &nativeEngine{
		trackers: make(map[Raw]trackerDeps),
		sigmas:   make(map[Raw]unsafe.Pointer),
	}, nil
}

func (e *nativeEngine) Name() string { return "mmdeploy" }

// Reentrant is false: SDK pipelines keep per-call scratch state.
func (e *nativeEngine) Reentrant() bool { return false }

func ptr(r Raw) unsafe.Pointer { return unsafe.Pointer(uintptr(r)) }

func raw(p unsafe.Pointer) Raw { return Raw(uintptr(p)) }

// cMats is a C array of mat descriptors pointing at pinned Go pixel data.
type cMats struct {
	arr    *C.mmdeploy_mat_t
	pinner runtime.Pinner
}

func newCMats(imgs []Image) *cMats {
	m := &cMats{}
	size := C.size_t(len(imgs)) * C.size_t(unsafe.Sizeof(C.mmdeploy_mat_t{}))
	m.arr = (*C.mmdeploy_mat_t)(C.malloc(size))
	mats := unsafe.Slice(m.arr, len(imgs))
	for i, img := range imgs {
		m.pinner.Pin(&img.Data[0])
		mats[i] = C.mmdeploy_mat_t{
			data:    (*C.uint8_t)(unsafe.Pointer(&img.Data[0])),
			height:  C.int(img.Height),
			width:   C.int(img.Width),
			channel: C.int(img.Channels),
			format:  C.mmdeploy_pixel_format_t(img.Format),
			_type:   C.mmdeploy_data_type_t(img.Type),
			device:  nil,
		}
	}
	return m
}

func (m *cMats) free() {
	C.free(unsafe.Pointer(m.arr))
	m.pinner.Unpin()
}

func cCounts(counts Raw, n int) ([]int32, int) {
	out := make([]int32, n)
	total := 0
	if n == 0 {
		return out, 0
	}
	cs := unsafe.Slice((*C.int)(ptr(counts)), n)
	for i, c := range cs {
		out[i] = int32(c)
		total += int(c)
	}
	return out, total
}

func goRect(r C.mmdeploy_rect_t) Rect {
	return Rect{Left: float32(r.left), Top: float32(r.top), Right: float32(r.right), Bottom: float32(r.bottom)}
}

// --- classifier -------------------------------------------------------------

func (e *nativeEngine) CreateClassifier(modelPath string, dev Device) (Raw, Status) {
	cPath := C.CString(modelPath)
	defer C.free(unsafe.Pointer(cPath))
	cDev := C.CString(dev.Name)
	defer C.free(unsafe.Pointer(cDev))

	var h C.mmdeploy_classifier_t
	st := C.mmdeploy_classifier_create_by_path(cPath, cDev, C.int(dev.ID), &h)
	return raw(unsafe.Pointer(h)), Status(st)
}

func (e *nativeEngine) ApplyClassifier(h Raw, imgs []Image) (NativeResult, Status) {
	mats := newCMats(imgs)
	defer mats.free()

	var results *C.mmdeploy_classification_t
	var counts *C.int
	st := C.mmdeploy_classifier_apply(C.mmdeploy_classifier_t(ptr(h)), mats.arr, C.int(len(imgs)), &results, &counts)
	if st != 0 {
		return NativeResult{}, Status(st)
	}
	return NativeResult{Data: raw(unsafe.Pointer(results)), Counts: raw(unsafe.Pointer(counts)), Len: len(imgs)}, StatusSuccess
}

func (e *nativeEngine) DecodeClassifier(res NativeResult) ([]Label, []int32, error) {
	counts, total := cCounts(res.Counts, res.Len)
	out := make([]Label, total)
	if total > 0 {
		for i, r := range unsafe.Slice((*C.mmdeploy_classification_t)(ptr(res.Data)), total) {
			out[i] = Label{LabelID: int32(r.label_id), Score: float32(r.score)}
		}
	}
	return out, counts, nil
}

func (e *nativeEngine) ReleaseClassifier(res NativeResult) {
	C.mmdeploy_classifier_release_result((*C.mmdeploy_classification_t)(ptr(res.Data)), (*C.int)(ptr(res.Counts)), C.int(res.Len))
}

func (e *nativeEngine) DestroyClassifier(h Raw) {
	C.mmdeploy_classifier_destroy(C.mmdeploy_classifier_t(ptr(h)))
}

// --- detector ---------------------------------------------------------------

func (e *nativeEngine) CreateDetector(modelPath string, dev Device) (Raw, Status) {
	cPath := C.CString(modelPath)
	defer C.free(unsafe.Pointer(cPath))
	cDev := C.CString(dev.Name)
	defer C.free(unsafe.Pointer(cDev))

	var h C.mmdeploy_detector_t
	st := C.mmdeploy_detector_create_by_path(cPath, cDev, C.int(dev.ID), &h)
	return raw(unsafe.Pointer(h)), Status(st)
}

func (e *nativeEngine) ApplyDetector(h Raw, imgs []Image) (NativeResult, Status) {
	mats := newCMats(imgs)
	defer mats.free()

	var results *C.mmdeploy_detection_t
	var counts *C.int
	st := C.mmdeploy_detector_apply(C.mmdeploy_detector_t(ptr(h)), mats.arr, C.int(len(imgs)), &results, &counts)
	if st != 0 {
		return NativeResult{}, Status(st)
	}
	return NativeResult{Data: raw(unsafe.Pointer(results)), Counts: raw(unsafe.Pointer(counts)), Len: len(imgs)}, StatusSuccess
}

func (e *nativeEngine) DecodeDetector(res NativeResult) ([]Detection, []int32, error) {
	counts, total := cCounts(res.Counts, res.Len)
	out := make([]Detection, total)
	if total > 0 {
		for i, r := range unsafe.Slice((*C.mmdeploy_detection_t)(ptr(res.Data)), total) {
			d := Detection{LabelID: int32(r.label_id), Score: float32(r.score), BBox: goRect(r.bbox)}
			if r.mask != nil && r.mask.data != nil {
				n := C.int(r.mask.height * r.mask.width)
				d.Mask = &InstanceMask{
					Data:   C.GoBytes(unsafe.Pointer(r.mask.data), n),
					Height: int32(r.mask.height),
					Width:  int32(r.mask.width),
				}
			}
			out[i] = d
		}
	}
	return out, counts, nil
}

func (e *nativeEngine) ReleaseDetector(res NativeResult) {
	C.mmdeploy_detector_release_result((*C.mmdeploy_detection_t)(ptr(res.Data)), (*C.int)(ptr(res.Counts)), C.int(res.Len))
}

func (e *nativeEngine) DestroyDetector(h Raw) {
	C.mmdeploy_detector_destroy(C.mmdeploy_detector_t(ptr(h)))
}

// --- segmentor --------------------------------------------------------------

func (e *nativeEngine) CreateSegmentor(modelPath string, dev Device) (Raw, Status) {
	cPath := C.CString(modelPath)
	defer C.free(unsafe.Pointer(cPath))
	cDev := C.CString(dev.Name)
	defer C.free(unsafe.Pointer(cDev))

	var h C.mmdeploy_segmentor_t
	st := C.mmdeploy_segmentor_create_by_path(cPath, cDev, C.int(dev.ID), &h)
	return raw(unsafe.Pointer(h)), Status(st)
}

func (e *nativeEngine) ApplySegmentor(h Raw, imgs []Image) (NativeResult, Status) {
	mats := newCMats(imgs)
	defer mats.free()

	var results *C.mmdeploy_segmentation_t
	st := C.mmdeploy_segmentor_apply(C.mmdeploy_segmentor_t(ptr(h)), mats.arr, C.int(len(imgs)), &results)
	if st != 0 {
		return NativeResult{}, Status(st)
	}
	return NativeResult{Data: raw(unsafe.Pointer(results)), Len: len(imgs)}, StatusSuccess
}

func (e *nativeEngine) DecodeSegmentor(res NativeResult) ([]Segmentation, error) {
	out := make([]Segmentation, res.Len)
	if res.Len == 0 {
		return out, nil
	}
	for i, r := range unsafe.Slice((*C.mmdeploy_segmentation_t)(ptr(res.Data)), res.Len) {
		s := Segmentation{Height: int32(r.height), Width: int32(r.width), Classes: int32(r.classes)}
		pixels := int(r.height) * int(r.width)
		if r.mask != nil {
			s.Mask = make([]int32, pixels)
			for j, v := range unsafe.Slice(r.mask, pixels) {
				s.Mask[j] = int32(v)
			}
		}
		if r.score != nil {
			s.Score = make([]float32, pixels*int(r.classes))
			for j, v := range unsafe.Slice(r.score, len(s.Score)) {
				s.Score[j] = float32(v)
			}
		}
		out[i] = s
	}
	return out, nil
}

func (e *nativeEngine) ReleaseSegmentor(res NativeResult) {
	C.mmdeploy_segmentor_release_result((*C.mmdeploy_segmentation_t)(ptr(res.Data)), C.int(res.Len))
}

func (e *nativeEngine) DestroySegmentor(h Raw) {
	C.mmdeploy_segmentor_destroy(C.mmdeploy_segmentor_t(ptr(h)))
}

// --- text detector ----------------------------------------------------------

func (e *nativeEngine) CreateTextDetector(modelPath string, dev Device) (Raw, Status) {
	cPath := C.CString(modelPath)
	defer C.free(unsafe.Pointer(cPath))
	cDev := C.CString(dev.Name)
	defer C.free(unsafe.Pointer(cDev))

	var h C.mmdeploy_text_detector_t
	st := C.mmdeploy_text_detector_create_by_path(cPath, cDev, C.int(dev.ID), &h)
	return raw(unsafe.Pointer(h)), Status(st)
}

func (e *nativeEngine) ApplyTextDetector(h Raw, imgs []Image) (NativeResult, Status) {
	mats := newCMats(imgs)
	defer mats.free()

	var results *C.mmdeploy_text_detection_t
	var counts *C.int
	st := C.mmdeploy_text_detector_apply(C.mmdeploy_text_detector_t(ptr(h)), mats.arr, C.int(len(imgs)), &results, &counts)
	if st != 0 {
		return NativeResult{}, Status(st)
	}
	return NativeResult{Data: raw(unsafe.Pointer(results)), Counts: raw(unsafe.Pointer(counts)), Len: len(imgs)}, StatusSuccess
}

func (e *nativeEngine) DecodeTextDetector(res NativeResult) ([]TextDetection, []int32, error) {
	counts, total := cCounts(res.Counts, res.Len)
	out := make([]TextDetection, total)
	if total > 0 {
		for i, r := range unsafe.Slice((*C.mmdeploy_text_detection_t)(ptr(res.Data)), total) {
			td := TextDetection{Score: float32(r.score)}
			for k := 0; k < 4; k++ {
				td.BBox[k] = Point{X: float32(r.bbox[k].x), Y: float32(r.bbox[k].y)}
			}
			out[i] = td
		}
	}
	return out, counts, nil
}

func (e *nativeEngine) ReleaseTextDetector(res NativeResult) {
	C.mmdeploy_text_detector_release_result((*C.mmdeploy_text_detection_t)(ptr(res.Data)), (*C.int)(ptr(res.Counts)), C.int(res.Len))
}

func (e *nativeEngine) DestroyTextDetector(h Raw) {
	C.mmdeploy_text_detector_destroy(C.mmdeploy_text_detector_t(ptr(h)))
}

// --- models, engine contexts, schedulers -------------------------------------

func (e *nativeEngine) CreateModel(path string) (Raw, Status) {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))
	var m C.mmdeploy_model_t
	if st := C.mmdeploy_model_create_by_path(cPath, &m); st != 0 {
		return InvalidRaw, Status(st)
	}
	return raw(unsafe.Pointer(m)), StatusSuccess
}

func (e *nativeEngine) DestroyModel(h Raw) {
	C.mmdeploy_model_destroy(C.mmdeploy_model_t(ptr(h)))
}

func (e *nativeEngine) CreateEngineContext(dev Device) (Raw, Status) {
	cDev := C.CString(dev.Name)
	defer C.free(unsafe.Pointer(cDev))
	var ctx C.mmdeploy_context_t
	if st := C.mmdeploy_context_create_by_device(cDev, C.int(dev.ID), &ctx); st != 0 {
		return InvalidRaw, Status(st)
	}
	return raw(unsafe.Pointer(ctx)), StatusSuccess
}

// contextAdd passes a NULL name when name is empty.
func contextAdd(ctx Raw, typ C.mmdeploy_context_type_t, name string, obj Raw) Status {
	var cName *C.char
	if name != "" {
		cName = C.CString(name)
		defer C.free(unsafe.Pointer(cName))
	}
	return Status(C.mmdeploy_context_add(C.mmdeploy_context_t(ptr(ctx)), typ, cName, ptr(obj)))
}

func (e *nativeEngine) AddContextModel(ctx Raw, name string, model Raw) Status {
	return contextAdd(ctx, C.MMDEPLOY_TYPE_MODEL, name, model)
}

func (e *nativeEngine) AddContextScheduler(ctx Raw, name string, sched Raw) Status {
	return contextAdd(ctx, C.MMDEPLOY_TYPE_SCHEDULER, name, sched)
}

func (e *nativeEngine) DestroyEngineContext(h Raw) {
	C.mmdeploy_context_destroy(C.mmdeploy_context_t(ptr(h)))
}

func (e *nativeEngine) CreateThreadPool(threads int) (Raw, Status) {
	s := C.mmdeploy_executor_create_thread_pool(C.int(threads))
	if s == nil {
		return InvalidRaw, StatusFail
	}
	return raw(unsafe.Pointer(s)), StatusSuccess
}

func (e *nativeEngine) CreateThread() (Raw, Status) {
	s := C.mmdeploy_executor_create_thread()
	if s == nil {
		return InvalidRaw, StatusFail
	}
	return raw(unsafe.Pointer(s)), StatusSuccess
}

func (e *nativeEngine) DestroyScheduler(h Raw) {
	C.mmdeploy_scheduler_destroy(C.mmdeploy_scheduler_t(ptr(h)))
}

// --- pose tracker -----------------------------------------------------------

// CreatePoseTrackerFromModels leaves det, pose and ctx owned by the caller.
func (e *nativeEngine) CreatePoseTrackerFromModels(det, pose, ctx Raw) (Raw, Status) {
	var h C.mmdeploy_pose_tracker_t
	st := C.mmdeploy_pose_tracker_create(C.mmdeploy_model_t(ptr(det)), C.mmdeploy_model_t(ptr(pose)),
		C.mmdeploy_context_t(ptr(ctx)), &h)
	if st != 0 {
		return InvalidRaw, Status(st)
	}
	return raw(unsafe.Pointer(h)), StatusSuccess
}

func (e *nativeEngine) CreatePoseTracker(detModelPath, poseModelPath string, dev Device) (Raw, Status) {
	cDet := C.CString(detModelPath)
	defer C.free(unsafe.Pointer(cDet))
	cPose := C.CString(poseModelPath)
	defer C.free(unsafe.Pointer(cPose))
	cDev := C.CString(dev.Name)
	defer C.free(unsafe.Pointer(cDev))

	var deps trackerDeps
	if st := C.mmdeploy_model_create_by_path(cDet, &deps.det); st != 0 {
		return InvalidRaw, Status(st)
	}
	if st := C.mmdeploy_model_create_by_path(cPose, &deps.pose); st != 0 {
		C.mmdeploy_model_destroy(deps.det)
		return InvalidRaw, Status(st)
	}
	if st := C.mmdeploy_context_create_by_device(cDev, C.int(dev.ID), &deps.ctx); st != 0 {
		C.mmdeploy_model_destroy(deps.pose)
		C.mmdeploy_model_destroy(deps.det)
		return InvalidRaw, Status(st)
	}

	var h C.mmdeploy_pose_tracker_t
	if st := C.mmdeploy_pose_tracker_create(deps.det, deps.pose, deps.ctx, &h); st != 0 {
		e.freeDeps(deps)
		return InvalidRaw, Status(st)
	}

	r := raw(unsafe.Pointer(h))
	e.mu.Lock()
	e.trackers[r] = deps
	e.mu.Unlock()
	return r, StatusSuccess
}

func (e *nativeEngine) freeDeps(d trackerDeps) {
	C.mmdeploy_context_destroy(d.ctx)
	C.mmdeploy_model_destroy(d.pose)
	C.mmdeploy_model_destroy(d.det)
}

func (e *nativeEngine) DefaultPoseTrackerParams() PoseTrackerParams {
	var p C.mmdeploy_pose_tracker_param_t
	if C.mmdeploy_pose_tracker_default_params(&p) != 0 {
		return DefaultPoseTrackerParams()
	}
	out := PoseTrackerParams{
		DetInterval:       int32(p.det_interval),
		DetLabel:          int32(p.det_label),
		DetThr:            float32(p.det_thr),
		DetMinBBoxSize:    float32(p.det_min_bbox_size),
		DetNMSThr:         float32(p.det_nms_thr),
		PoseMaxNumBBoxes:  int32(p.pose_max_num_bboxes),
		PoseKptThr:        float32(p.pose_kpt_thr),
		PoseMinKeypoints:  int32(p.pose_min_keypoints),
		PoseBBoxScale:     float32(p.pose_bbox_scale),
		PoseMinBBoxSize:   float32(p.pose_min_bbox_size),
		PoseNMSThr:        float32(p.pose_nms_thr),
		TrackIoUThr:       float32(p.track_iou_thr),
		TrackMaxMissing:   int32(p.track_max_missing),
		TrackHistorySize:  int32(p.track_history_size),
		StdWeightPosition: float32(p.std_weight_position),
		StdWeightVelocity: float32(p.std_weight_velocity),
	}
	for i := range out.SmoothParams {
		out.SmoothParams[i] = float32(p.smooth_params[i])
	}
	if p.keypoint_sigmas != nil && p.keypoint_sigmas_size > 0 {
		for _, s := range unsafe.Slice(p.keypoint_sigmas, int(p.keypoint_sigmas_size)) {
			out.KeypointSigmas = append(out.KeypointSigmas, float32(s))
		}
	}
	return out
}

func (e *nativeEngine) CreatePoseTrackerState(tracker Raw, params PoseTrackerParams) (Raw, Status) {
	var p C.mmdeploy_pose_tracker_param_t
	if st := C.mmdeploy_pose_tracker_default_params(&p); st != 0 {
		return InvalidRaw, Status(st)
	}
	p.det_interval = C.int32_t(params.DetInterval)
	p.det_label = C.int32_t(params.DetLabel)
	p.det_thr = C.float(params.DetThr)
	p.det_min_bbox_size = C.float(params.DetMinBBoxSize)
	p.det_nms_thr = C.float(params.DetNMSThr)
	p.pose_max_num_bboxes = C.int32_t(params.PoseMaxNumBBoxes)
	p.pose_kpt_thr = C.float(params.PoseKptThr)
	p.pose_min_keypoints = C.int32_t(params.PoseMinKeypoints)
	p.pose_bbox_scale = C.float(params.PoseBBoxScale)
	p.pose_min_bbox_size = C.float(params.PoseMinBBoxSize)
	p.pose_nms_thr = C.float(params.PoseNMSThr)
	p.track_iou_thr = C.float(params.TrackIoUThr)
	p.track_max_missing = C.int32_t(params.TrackMaxMissing)
	p.track_history_size = C.int32_t(params.TrackHistorySize)
	p.std_weight_position = C.float(params.StdWeightPosition)
	p.std_weight_velocity = C.float(params.StdWeightVelocity)
	for i, v := range params.SmoothParams {
		p.smooth_params[i] = C.float(v)
	}

	// The sigma array must outlive the state; it is freed with it.
	var sigmas unsafe.Pointer
	if n := len(params.KeypointSigmas); n > 0 {
		sigmas = C.malloc(C.size_t(n) * C.size_t(unsafe.Sizeof(C.float(0))))
		dst := unsafe.Slice((*C.float)(sigmas), n)
		for i, v := range params.KeypointSigmas {
			dst[i] = C.float(v)
		}
		p.keypoint_sigmas = (*C.float)(sigmas)
		p.keypoint_sigmas_size = C.int32_t(n)
	}

	var state C.mmdeploy_pose_tracker_state_t
	st := C.mmdeploy_pose_tracker_create_state(C.mmdeploy_pose_tracker_t(ptr(tracker)), &p, &state)
	if st != 0 {
		if sigmas != nil {
			C.free(sigmas)
		}
		return InvalidRaw, Status(st)
	}
	r := raw(unsafe.Pointer(state))
	if sigmas != nil {
		e.mu.Lock()
		e.sigmas[r] = sigmas
		e.mu.Unlock()
	}
	return r, StatusSuccess
}

func (e *nativeEngine) ApplyPoseTracker(tracker Raw, states []Raw, imgs []Image, detect []int32) (NativeResult, Status) {
	mats := newCMats(imgs)
	defer mats.free()

	n := len(imgs)
	cStates := (*C.mmdeploy_pose_tracker_state_t)(C.malloc(C.size_t(n) * C.size_t(unsafe.Sizeof(uintptr(0)))))
	defer C.free(unsafe.Pointer(cStates))
	stateArr := unsafe.Slice(cStates, n)
	for i, s := range states {
		stateArr[i] = C.mmdeploy_pose_tracker_state_t(ptr(s))
	}
	cDetect := (*C.int32_t)(C.malloc(C.size_t(n) * C.size_t(unsafe.Sizeof(C.int32_t(0)))))
	defer C.free(unsafe.Pointer(cDetect))
	detectArr := unsafe.Slice(cDetect, n)
	for i, d := range detect {
		detectArr[i] = C.int32_t(d)
	}

	var results *C.mmdeploy_pose_tracker_target_t
	var counts *C.int32_t
	st := C.mmdeploy_pose_tracker_apply(C.mmdeploy_pose_tracker_t(ptr(tracker)), cStates, mats.arr, cDetect,
		C.int32_t(n), &results, &counts)
	if st != 0 {
		return NativeResult{}, Status(st)
	}
	return NativeResult{Data: raw(unsafe.Pointer(results)), Counts: raw(unsafe.Pointer(counts)), Len: n}, StatusSuccess
}

func (e *nativeEngine) DecodePoseTracker(res NativeResult) ([]PoseTarget, []int32, error) {
	counts, total := cCounts(res.Counts, res.Len)
	out := make([]PoseTarget, total)
	if total > 0 {
		for i, r := range unsafe.Slice((*C.mmdeploy_pose_tracker_target_t)(ptr(res.Data)), total) {
			k := int(r.keypoint_count)
			pt := PoseTarget{BBox: goRect(r.bbox), TargetID: uint32(r.target_id)}
			if k > 0 {
				pt.Keypoints = make([]Point, k)
				for j, p := range unsafe.Slice(r.keypoints, k) {
					pt.Keypoints[j] = Point{X: float32(p.x), Y: float32(p.y)}
				}
				pt.Scores = make([]float32, k)
				for j, s := range unsafe.Slice(r.scores, k) {
					pt.Scores[j] = float32(s)
				}
			}
			out[i] = pt
		}
	}
	return out, counts, nil
}

func (e *nativeEngine) ReleasePoseTracker(res NativeResult) {
	C.mmdeploy_pose_tracker_release_result((*C.mmdeploy_pose_tracker_target_t)(ptr(res.Data)),
		(*C.int32_t)(ptr(res.Counts)), C.int32_t(res.Len))
}

func (e *nativeEngine) DestroyPoseTrackerState(state Raw) {
	C.mmdeploy_pose_tracker_destroy_state(C.mmdeploy_pose_tracker_state_t(ptr(state)))
	e.mu.Lock()
	sigmas, ok := e.sigmas[state]
	delete(e.sigmas, state)
	e.mu.Unlock()
	if ok {
		C.free(sigmas)
	}
}

func (e *nativeEngine) DestroyPoseTracker(h Raw) {
	C.mmdeploy_pose_tracker_destroy(C.mmdeploy_pose_tracker_t(ptr(h)))
	e.mu.Lock()
	deps, ok := e.trackers[h]
	delete(e.trackers, h)
	e.mu.Unlock()
	if ok {
		e.freeDeps(deps)
	}
}
