package refengine

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"
	"gorgonia.org/tensor"

	"github.com/csotherden/gorgonia-mmdeploy/mmdeploy"
)

const colorModel = `{
	"labels": ["blue", "red"],
	"channels": 3,
	"weights": [[2, 0], [0, 0], [0, 2]],
	"bias": [0, 0]
}`

func writeArtifact(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func newTestSession(t *testing.T) (*Engine, *mmdeploy.Session) {
	t.Helper()
	log := zaptest.NewLogger(t)
	e := New(WithLogger(log))
	sess := mmdeploy.NewSession(e, mmdeploy.WithLogger(log))
	t.Cleanup(func() {
		if err := sess.Close(); err != nil {
			t.Errorf("session close: %v", err)
		}
		if n := len(e.results); n != 0 {
			t.Errorf("%d results left in the engine", n)
		}
	})
	return e, sess
}

// solid returns a 2x2 BGR mat filled with one color.
func solid(t *testing.T, b, g, r uint8) mmdeploy.Mat {
	t.Helper()
	pix := make([]uint8, 0, 12)
	for i := 0; i < 4; i++ {
		pix = append(pix, b, g, r)
	}
	m, err := mmdeploy.NewMat(2, 2, mmdeploy.PixelBGR, pix)
	if err != nil {
		t.Fatalf("NewMat: %v", err)
	}
	return m
}

func statusOf(t *testing.T, err error) mmdeploy.Status {
	t.Helper()
	var merr *mmdeploy.Error
	if !errors.As(err, &merr) {
		t.Fatalf("expected *mmdeploy.Error, got %v", err)
	}
	return merr.Status
}

func TestClassifierEndToEnd(t *testing.T) {
	e, sess := newTestSession(t)

	// A directory model path resolves to its model.json.
	dir := filepath.Dir(writeArtifact(t, artifactFile, colorModel))
	cls, err := sess.NewClassifier(dir, mmdeploy.CPU)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	if names := e.LabelNames(mmdeploy.Raw(cls.ID())); len(names) != 2 || names[1] != "red" {
		t.Fatalf("LabelNames = %v", names)
	}

	mats := []mmdeploy.Mat{solid(t, 255, 0, 0), solid(t, 0, 0, 255), solid(t, 255, 0, 0)}
	err = cls.ApplyFunc(context.Background(), mats, func(labels [][]mmdeploy.Label) error {
		if len(labels) != 3 {
			t.Fatalf("got %d entries, want 3", len(labels))
		}
		for i, want := range []int32{0, 1, 0} {
			if len(labels[i]) != 2 {
				t.Fatalf("input %d: got %d labels, want 2", i, len(labels[i]))
			}
			if labels[i][0].LabelID != want {
				t.Errorf("input %d: top label %d, want %d", i, labels[i][0].LabelID, want)
			}
			sum := labels[i][0].Score + labels[i][1].Score
			if math.Abs(float64(sum)-1) > 1e-5 {
				t.Errorf("input %d: scores sum to %v", i, sum)
			}
			wantScore := float32(math.Exp(2) / (math.Exp(2) + 1))
			if math.Abs(float64(labels[i][0].Score-wantScore)) > 1e-5 {
				t.Errorf("input %d: top score %v, want %v", i, labels[i][0].Score, wantScore)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ApplyFunc: %v", err)
	}
	if err := cls.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
}

func TestClassifierTopK(t *testing.T) {
	_, sess := newTestSession(t)

	path := writeArtifact(t, "top1.json",
		`{"channels": 3, "weights": [[1, 0, 0], [0, 1, 0], [0, 0, 1]], "bias": [0, 0, 0], "topk": 1}`)
	cls, err := sess.NewClassifier(path, mmdeploy.CPU)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}

	res, err := cls.Apply(context.Background(), []mmdeploy.Mat{solid(t, 0, 255, 0)})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	labels, err := res.At(0)
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	if len(labels) != 1 || labels[0].LabelID != 1 {
		t.Fatalf("labels = %+v, want only class 1", labels)
	}
	if err := res.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestClassifierYAMLArtifact(t *testing.T) {
	e, sess := newTestSession(t)

	path := writeArtifact(t, "gray.yaml", `
labels: [dark, light]
channels: 1
weights:
  - [-4, 4]
bias: [2, -2]
`)
	cls, err := sess.NewClassifier(path, mmdeploy.CPU)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	if names := e.LabelNames(mmdeploy.Raw(cls.ID())); len(names) != 2 || names[0] != "dark" {
		t.Fatalf("LabelNames = %v", names)
	}

	white, err := mmdeploy.NewMat(2, 2, mmdeploy.PixelGrayscale, []uint8{255, 255, 255, 255})
	if err != nil {
		t.Fatalf("NewMat: %v", err)
	}
	err = cls.ApplyFunc(context.Background(), []mmdeploy.Mat{white}, func(labels [][]mmdeploy.Label) error {
		if labels[0][0].LabelID != 1 {
			t.Errorf("top label %d, want 1", labels[0][0].LabelID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ApplyFunc: %v", err)
	}
	if err := cls.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
}

func TestClassifierCreateFailures(t *testing.T) {
	_, sess := newTestSession(t)

	cases := []struct {
		name string
		path string
		dev  mmdeploy.Device
		want mmdeploy.Status
	}{
		{"missing", filepath.Join(t.TempDir(), "none.json"), mmdeploy.CPU, mmdeploy.StatusFileNotExist},
		{"malformed", writeArtifact(t, "bad.json", `{"channels": `), mmdeploy.CPU, mmdeploy.StatusInvalidArg},
		{"bias mismatch", writeArtifact(t, "dims.json",
			`{"channels": 1, "weights": [[1, 2]], "bias": [0]}`), mmdeploy.CPU, mmdeploy.StatusInvalidArg},
		{"label mismatch", writeArtifact(t, "labels.json",
			`{"labels": ["a"], "channels": 1, "weights": [[1, 2]], "bias": [0, 0]}`), mmdeploy.CPU, mmdeploy.StatusInvalidArg},
		{"gpu", writeArtifact(t, "ok.json", colorModel), mmdeploy.CUDA(0), mmdeploy.StatusNotSupported},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cls, err := sess.NewClassifier(tc.path, tc.dev)
			if cls != nil {
				t.Fatalf("expected nil classifier")
			}
			if !errors.Is(err, mmdeploy.ErrCreate) {
				t.Fatalf("expected ErrCreate, got %v", err)
			}
			if st := statusOf(t, err); st != tc.want {
				t.Fatalf("status = %v, want %v", st, tc.want)
			}
		})
	}
	if n := sess.LiveHandles(); n != 0 {
		t.Fatalf("%d live handles after failed creates", n)
	}
}

func TestClassifierRejectsChannelMismatch(t *testing.T) {
	_, sess := newTestSession(t)

	cls, err := sess.NewClassifier(writeArtifact(t, "m.json", colorModel), mmdeploy.CPU)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	gray, err := mmdeploy.NewMat(2, 2, mmdeploy.PixelGrayscale, make([]uint8, 4))
	if err != nil {
		t.Fatalf("NewMat: %v", err)
	}

	_, err = cls.Apply(context.Background(), []mmdeploy.Mat{solid(t, 1, 2, 3), gray})
	if !errors.Is(err, mmdeploy.ErrApply) {
		t.Fatalf("expected ErrApply, got %v", err)
	}
	if st := statusOf(t, err); st != mmdeploy.StatusInvalidArg {
		t.Fatalf("status = %v", st)
	}
	if n := sess.OutstandingResults(); n != 0 {
		t.Fatalf("%d outstanding results", n)
	}
}

func TestSegmentorArgmax(t *testing.T) {
	_, sess := newTestSession(t)

	seg, err := sess.NewSegmentor(writeArtifact(t, "seg.json", `{"classes": 3}`), mmdeploy.CPU)
	if err != nil {
		t.Fatalf("NewSegmentor: %v", err)
	}

	bytesMat, err := mmdeploy.NewMat(1, 2, mmdeploy.PixelBGR, []uint8{10, 200, 30, 90, 10, 5})
	if err != nil {
		t.Fatalf("NewMat: %v", err)
	}
	floatMat := mmdeploy.Mat{
		Tensor: tensor.New(tensor.WithShape(1, 2, 3), tensor.WithBacking([]float32{0, 0, 1, 0.5, 0.2, 0.1})),
		Format: mmdeploy.PixelBGR,
	}

	err = seg.ApplyFunc(context.Background(), []mmdeploy.Mat{bytesMat, floatMat}, func(maps []mmdeploy.Segmentation) error {
		want := [][]int32{{1, 0}, {2, 0}}
		for i := range want {
			if maps[i].Height != 1 || maps[i].Width != 2 || maps[i].Classes != 3 {
				t.Errorf("map %d geometry %dx%d/%d", i, maps[i].Width, maps[i].Height, maps[i].Classes)
			}
			if len(maps[i].Mask) != 2 || maps[i].Mask[0] != want[i][0] || maps[i].Mask[1] != want[i][1] {
				t.Errorf("map %d mask = %v, want %v", i, maps[i].Mask, want[i])
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ApplyFunc: %v", err)
	}
}

func TestUnsupportedCapabilities(t *testing.T) {
	_, sess := newTestSession(t)

	if _, err := sess.NewDetector("yolo", mmdeploy.CPU); !errors.Is(err, mmdeploy.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
