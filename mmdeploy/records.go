package mmdeploy

// Label is one classification of an image.
type Label struct {
	LabelID int32   `json:"label_id"`
	Score   float32 `json:"score"`
}

// Point is an image-space coordinate in pixels.
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Rect is an axis-aligned box in pixels.
type Rect struct {
	Left   float32 `json:"left"`
	Top    float32 `json:"top"`
	Right  float32 `json:"right"`
	Bottom float32 `json:"bottom"`
}

// InstanceMask is a per-detection binary mask cropped to its box.
type InstanceMask struct {
	Data   []byte `json:"data"`
	Height int32  `json:"height"`
	Width  int32  `json:"width"`
}

// Detection is one detected object.
type Detection struct {
	Mask    *InstanceMask `json:"mask,omitempty"`
	BBox    Rect          `json:"bbox"`
	LabelID int32         `json:"label_id"`
	Score   float32       `json:"score"`
}

// TextDetection is one detected text region as a quadrilateral.
type TextDetection struct {
	BBox  [4]Point `json:"bbox"`
	Score float32  `json:"score"`
}

// Segmentation is the dense prediction for one image. Mask holds a class
// index per pixel; Score, when the model emits it, holds Classes planes of
// per-pixel scores.
type Segmentation struct {
	Mask    []int32   `json:"mask,omitempty"`
	Score   []float32 `json:"score,omitempty"`
	Height  int32     `json:"height"`
	Width   int32     `json:"width"`
	Classes int32     `json:"classes"`
}

// PoseTarget is one tracked person in a frame.
type PoseTarget struct {
	Keypoints []Point   `json:"keypoints"`
	Scores    []float32 `json:"scores"`
	BBox      Rect      `json:"bbox"`
	TargetID  uint32    `json:"target_id"`
}
