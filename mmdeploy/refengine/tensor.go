// tensor.go
//
// Tensor engine used by the reference models. It delegates to
// tensor.StdEng and adds the shape checks the models rely on.

package refengine

import (
	"fmt"

	"gorgonia.org/tensor"

	"github.com/csotherden/gorgonia-mmdeploy/mmdeploy"
)

// Eng is a tensor.Engine that delegates to tensor.StdEng. MatMul and Argmax
// are wrapped so shape errors name the operands.
type Eng struct {
	tensor.StdEng
}

// NewEng constructs a new Eng.
func NewEng() *Eng {
	return &Eng{
		StdEng: tensor.StdEng{},
	}
}

// Compile-time check that *Eng satisfies tensor.Engine.
var _ tensor.Engine = (*Eng)(nil)

// resolveAxis mirrors tensor.resolveAxis (which is unexported) so that
// negative axes count from the end.
//
// For example, for dims=3 and axis=-1 this returns 2 (the last dim).
func resolveAxis(axis, dims int) int {
	res := axis % dims
	if (res < 0 && dims > 0) || (res > 0 && dims < 0) {
		return res + dims
	}
	return res
}

// MatMul multiplies two 2D dense matrices into prealloc, rejecting shape
// mismatches before StdEng sees them.
func (e *Eng) MatMul(a, b, prealloc tensor.Tensor) error {
	shapeA, shapeB, shapeC := a.Shape(), b.Shape(), prealloc.Shape()
	if len(shapeA) != 2 || len(shapeB) != 2 {
		return fmt.Errorf("refengine: MatMul needs matrices: a=%v, b=%v", shapeA, shapeB)
	}

	m, kA := shapeA[0], shapeA[1]
	kB, n := shapeB[0], shapeB[1]

	if kA != kB {
		return fmt.Errorf("refengine: MatMul shape mismatch: a=%v, b=%v (inner dims %d vs %d)", shapeA, shapeB, kA, kB)
	}
	if len(shapeC) != 2 || shapeC[0] != m || shapeC[1] != n {
		return fmt.Errorf("refengine: MatMul prealloc shape mismatch: expected [%d %d], got %v", m, n, shapeC)
	}
	return e.StdEng.MatMul(a, b, prealloc)
}

// Argmax returns the index of the largest element along axis, which may be
// negative.
func (e *Eng) Argmax(t tensor.Tensor, axis int) (tensor.Tensor, error) {
	if t.Dims() == 0 {
		return nil, fmt.Errorf("refengine: Argmax of a scalar")
	}
	return e.StdEng.Argmax(t, resolveAxis(axis, t.Dims()))
}

// pixels copies an image into a [height*width, channels] float32 matrix.
// 8-bit pixels are scaled to [0,1]. NV12/NV21 frames contribute their luma
// plane only.
func pixels(img mmdeploy.Image) (*tensor.Dense, error) {
	rows := img.Height * img.Width
	if rows <= 0 || img.Channels <= 0 {
		return nil, fmt.Errorf("refengine: empty %dx%dx%d image", img.Height, img.Width, img.Channels)
	}
	n := rows * img.Channels
	out := make([]float32, n)
	switch img.Type {
	case mmdeploy.DataUint8:
		if len(img.Data) < n {
			return nil, fmt.Errorf("refengine: %d bytes for %d values", len(img.Data), n)
		}
		for i := range out {
			out[i] = float32(img.Data[i]) / 255
		}
	case mmdeploy.DataFloat:
		src, ok := img.Tensor.Data().([]float32)
		if !ok || len(src) < n {
			return nil, fmt.Errorf("refengine: float image backing too small for %d values", n)
		}
		copy(out, src[:n])
	default:
		return nil, fmt.Errorf("refengine: unsupported element type %d", img.Type)
	}
	return tensor.New(tensor.WithShape(rows, img.Channels), tensor.WithBacking(out)), nil
}
