package refengine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/csotherden/gorgonia-mmdeploy/mmdeploy"
)

// artifactFile is the file read when a model path names a directory.
const artifactFile = "model.json"

// ClassifierArtifact is the on-disk classifier: a linear layer over the
// per-channel mean of the image, followed by softmax.
type ClassifierArtifact struct {
	Labels   []string    `json:"labels,omitempty" yaml:"labels,omitempty"`
	Weights  [][]float32 `json:"weights" yaml:"weights"` // [channels][classes]
	Bias     []float32   `json:"bias" yaml:"bias"`       // [classes]
	Channels int         `json:"channels" yaml:"channels"`
	TopK     int         `json:"topk,omitempty" yaml:"topk,omitempty"` // 0 keeps every class
}

// SegmentorArtifact is the on-disk segmentor: a per-pixel argmax over
// Classes input channels.
type SegmentorArtifact struct {
	Classes int `json:"classes" yaml:"classes"`
}

func (a *ClassifierArtifact) validate() error {
	if a.Channels <= 0 {
		return fmt.Errorf("channels %d <= 0", a.Channels)
	}
	if len(a.Weights) != a.Channels {
		return fmt.Errorf("%d weight rows for %d channels", len(a.Weights), a.Channels)
	}
	k := len(a.Bias)
	if k == 0 {
		return fmt.Errorf("no classes")
	}
	for i, row := range a.Weights {
		if len(row) != k {
			return fmt.Errorf("weight row %d has %d classes, bias has %d", i, len(row), k)
		}
	}
	if len(a.Labels) != 0 && len(a.Labels) != k {
		return fmt.Errorf("%d labels for %d classes", len(a.Labels), k)
	}
	if a.TopK < 0 {
		return fmt.Errorf("topk %d < 0", a.TopK)
	}
	return nil
}

func (a *SegmentorArtifact) validate() error {
	if a.Classes <= 0 {
		return fmt.Errorf("classes %d <= 0", a.Classes)
	}
	return nil
}

// loadArtifact decodes the artifact at path (JSON, or YAML) into v and maps failures
// to engine status codes: a missing file is StatusFileNotExist, anything
// unreadable or malformed is StatusInvalidArg.
func loadArtifact(path string, v interface{ validate() error }) (mmdeploy.Status, error) {
	if path == "" {
		return mmdeploy.StatusInvalidArg, fmt.Errorf("empty model path")
	}
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		path = filepath.Join(path, artifactFile)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return mmdeploy.StatusFileNotExist, err
	}
	if err != nil {
		return mmdeploy.StatusInvalidArg, err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return mmdeploy.StatusInvalidArg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := v.validate(); err != nil {
		return mmdeploy.StatusInvalidArg, fmt.Errorf("%s: %w", path, err)
	}
	return mmdeploy.StatusSuccess, nil
}
