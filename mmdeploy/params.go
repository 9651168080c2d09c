package mmdeploy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// DetectMode tells the pose tracker whether to run the detector on a frame.
type DetectMode int32

const (
	DetectAuto  DetectMode = -1 // detect every DetInterval frames
	DetectSkip  DetectMode = 0  // track only
	DetectForce DetectMode = 1  // detect on this frame
)

// PoseTrackerParams is the parameter block a tracker state is created from.
// Start from PoseTracker.DefaultParams (or DefaultPoseTrackerParams for
// engines without their own defaults) and change fields as needed.
type PoseTrackerParams struct {
	// Detection.
	DetInterval    int32   `json:"det_interval" yaml:"det_interval"`           // run detection every N frames, >= 1
	DetLabel       int32   `json:"det_label" yaml:"det_label"`                 // detector class treated as person
	DetThr         float32 `json:"det_thr" yaml:"det_thr"`                     // [0,1]
	DetMinBBoxSize float32 `json:"det_min_bbox_size" yaml:"det_min_bbox_size"` // negative disables
	DetNMSThr      float32 `json:"det_nms_thr" yaml:"det_nms_thr"`             // [0,1]

	// Pose estimation.
	PoseMaxNumBBoxes int32     `json:"pose_max_num_bboxes" yaml:"pose_max_num_bboxes"` // -1 unlimited, otherwise > 0
	PoseKptThr       float32   `json:"pose_kpt_thr" yaml:"pose_kpt_thr"`               // [0,1]
	PoseMinKeypoints int32     `json:"pose_min_keypoints" yaml:"pose_min_keypoints"`   // -1 disables
	PoseBBoxScale    float32   `json:"pose_bbox_scale" yaml:"pose_bbox_scale"`         // > 0
	PoseMinBBoxSize  float32   `json:"pose_min_bbox_size" yaml:"pose_min_bbox_size"`   // negative disables
	PoseNMSThr       float32   `json:"pose_nms_thr" yaml:"pose_nms_thr"`               // [0,1]
	KeypointSigmas   []float32 `json:"keypoint_sigmas" yaml:"keypoint_sigmas"`         // empty uses the model's

	// Tracking.
	TrackIoUThr       float32 `json:"track_iou_thr" yaml:"track_iou_thr"`             // [0,1]
	TrackMaxMissing   int32   `json:"track_max_missing" yaml:"track_max_missing"`     // >= 0
	TrackHistorySize  int32   `json:"track_history_size" yaml:"track_history_size"`   // >= 1
	StdWeightPosition float32 `json:"std_weight_position" yaml:"std_weight_position"` // > 0
	StdWeightVelocity float32 `json:"std_weight_velocity" yaml:"std_weight_velocity"` // > 0

	// SmoothParams are the one-euro filter settings: min cutoff (> 0),
	// beta (>= 0) and derivative cutoff (> 0).
	SmoothParams [3]float32 `json:"smooth_params" yaml:"smooth_params"`
}

// DefaultPoseTrackerParams returns the SDK's documented defaults.
func DefaultPoseTrackerParams() PoseTrackerParams {
	return PoseTrackerParams{
		DetInterval:       1,
		DetLabel:          0,
		DetThr:            0.5,
		DetMinBBoxSize:    -1,
		DetNMSThr:         0.7,
		PoseMaxNumBBoxes:  -1,
		PoseKptThr:        0.5,
		PoseMinKeypoints:  -1,
		PoseBBoxScale:     1.25,
		PoseMinBBoxSize:   -1,
		PoseNMSThr:        0.5,
		TrackIoUThr:       0.4,
		TrackMaxMissing:   10,
		TrackHistorySize:  1,
		StdWeightPosition: 1.0 / 20,
		StdWeightVelocity: 1.0 / 160,
		SmoothParams:      [3]float32{0.007, 1, 1},
	}
}

// Validate checks every field against its documented range and reports all
// violations at once.
func (p PoseTrackerParams) Validate() error {
	var err error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			err = multierr.Append(err, fmt.Errorf(format, args...))
		}
	}
	unit := func(name string, v float32) {
		check(v >= 0 && v <= 1, "%s %v outside [0,1]", name, v)
	}

	check(p.DetInterval >= 1, "det_interval %d < 1", p.DetInterval)
	check(p.DetLabel >= 0, "det_label %d < 0", p.DetLabel)
	unit("det_thr", p.DetThr)
	unit("det_nms_thr", p.DetNMSThr)
	check(p.PoseMaxNumBBoxes == -1 || p.PoseMaxNumBBoxes > 0,
		"pose_max_num_bboxes %d must be -1 or positive", p.PoseMaxNumBBoxes)
	unit("pose_kpt_thr", p.PoseKptThr)
	check(p.PoseMinKeypoints >= -1, "pose_min_keypoints %d < -1", p.PoseMinKeypoints)
	check(p.PoseBBoxScale > 0, "pose_bbox_scale %v <= 0", p.PoseBBoxScale)
	unit("pose_nms_thr", p.PoseNMSThr)
	for i, s := range p.KeypointSigmas {
		check(s > 0, "keypoint_sigmas[%d] %v <= 0", i, s)
	}
	unit("track_iou_thr", p.TrackIoUThr)
	check(p.TrackMaxMissing >= 0, "track_max_missing %d < 0", p.TrackMaxMissing)
	check(p.TrackHistorySize >= 1, "track_history_size %d < 1", p.TrackHistorySize)
	check(p.StdWeightPosition > 0, "std_weight_position %v <= 0", p.StdWeightPosition)
	check(p.StdWeightVelocity > 0, "std_weight_velocity %v <= 0", p.StdWeightVelocity)
	check(p.SmoothParams[0] > 0, "smooth_params[0] %v <= 0", p.SmoothParams[0])
	check(p.SmoothParams[1] >= 0, "smooth_params[1] %v < 0", p.SmoothParams[1])
	check(p.SmoothParams[2] > 0, "smooth_params[2] %v <= 0", p.SmoothParams[2])
	return err
}

// LoadPoseTrackerParams reads a YAML (or JSON) mapping from path and
// overlays the fields it names onto base. Unknown fields are rejected and an
// empty file leaves base unchanged. The merged block is validated before it
// is returned.
func LoadPoseTrackerParams(path string, base PoseTrackerParams) (PoseTrackerParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PoseTrackerParams{}, fmt.Errorf("mmdeploy: read params: %w", err)
	}

	p := base
	p.KeypointSigmas = append([]float32(nil), base.KeypointSigmas...)
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return PoseTrackerParams{}, fmt.Errorf("mmdeploy: parse params %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return PoseTrackerParams{}, fmt.Errorf("mmdeploy: params %s: %w", path, err)
	}
	return p, nil
}
