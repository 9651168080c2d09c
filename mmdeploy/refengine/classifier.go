package refengine

import (
	"fmt"
	"sort"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/csotherden/gorgonia-mmdeploy/mmdeploy"
)

// classifier holds one loaded model: the graph softmax(x·W + b) and the
// tape machine that runs it. x is rebound for every image, so a classifier
// runs one image at a time.
type classifier struct {
	art  ClassifierArtifact
	g    *gorgonia.ExprGraph
	x    *gorgonia.Node
	prob *gorgonia.Node
	vm   gorgonia.VM
}

func newClassifier(art ClassifierArtifact) (*classifier, error) {
	c, k := art.Channels, len(art.Bias)
	w := make([]float32, 0, c*k)
	for _, row := range art.Weights {
		w = append(w, row...)
	}

	g := gorgonia.NewGraph()
	x := gorgonia.NewMatrix(g, tensor.Float32, gorgonia.WithShape(1, c), gorgonia.WithName("x"))
	wn := gorgonia.NewMatrix(g, tensor.Float32, gorgonia.WithShape(c, k), gorgonia.WithName("w"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(c, k), tensor.WithBacking(w))))
	bn := gorgonia.NewMatrix(g, tensor.Float32, gorgonia.WithShape(1, k), gorgonia.WithName("b"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(1, k), tensor.WithBacking(append([]float32(nil), art.Bias...)))))

	xw, err := gorgonia.Mul(x, wn)
	if err != nil {
		return nil, fmt.Errorf("build x·W: %w", err)
	}
	logits, err := gorgonia.Add(xw, bn)
	if err != nil {
		return nil, fmt.Errorf("build logits: %w", err)
	}
	prob, err := gorgonia.SoftMax(logits, 1)
	if err != nil {
		return nil, fmt.Errorf("build softmax: %w", err)
	}

	return &classifier{art: art, g: g, x: x, prob: prob, vm: gorgonia.NewTapeMachine(g)}, nil
}

// meanPool averages a [pixels, channels] matrix over its pixels with a
// ones-row matrix multiplication, giving a [1, channels] feature.
func meanPool(eng *Eng, px *tensor.Dense) (*tensor.Dense, error) {
	shape := px.Shape()
	if len(shape) != 2 || shape[0] == 0 {
		return nil, fmt.Errorf("refengine: cannot pool pixels of shape %v", shape)
	}
	rows, c := shape[0], shape[1]
	ones := make([]float32, rows)
	for i := range ones {
		ones[i] = 1 / float32(rows)
	}
	feat := tensor.New(tensor.WithShape(1, c), tensor.WithBacking(make([]float32, c)))
	err := eng.MatMul(tensor.New(tensor.WithShape(1, rows), tensor.WithBacking(ones)), px, feat)
	if err != nil {
		return nil, err
	}
	return feat, nil
}

// scores runs the graph for one image and returns the class probabilities.
func (m *classifier) scores(eng *Eng, img mmdeploy.Image) ([]float32, error) {
	if img.Channels != m.art.Channels {
		return nil, fmt.Errorf("image has %d channels, model expects %d", img.Channels, m.art.Channels)
	}
	px, err := pixels(img)
	if err != nil {
		return nil, err
	}
	feat, err := meanPool(eng, px)
	if err != nil {
		return nil, err
	}

	defer m.vm.Reset()
	if err := gorgonia.Let(m.x, feat); err != nil {
		return nil, err
	}
	if err := m.vm.RunAll(); err != nil {
		return nil, err
	}
	p, ok := m.prob.Value().Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("softmax produced %T", m.prob.Value().Data())
	}
	return append([]float32(nil), p...), nil
}

// topK returns the labels ordered by descending score, ties by class id,
// keeping the first k (all when k is 0).
func topK(p []float32, k int) []mmdeploy.Label {
	labels := make([]mmdeploy.Label, len(p))
	for i, s := range p {
		labels[i] = mmdeploy.Label{LabelID: int32(i), Score: s}
	}
	sort.SliceStable(labels, func(i, j int) bool { return labels[i].Score > labels[j].Score })
	if k > 0 && k < len(labels) {
		labels = labels[:k]
	}
	return labels
}

func (m *classifier) close() error {
	return m.vm.Close()
}
