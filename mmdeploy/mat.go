package mmdeploy

import (
	"fmt"
	"unsafe"

	"gorgonia.org/tensor"
)

// PixelFormat is the channel layout of a Mat.
type PixelFormat int32

const (
	PixelBGR PixelFormat = iota
	PixelRGB
	PixelGrayscale
	PixelNV12
	PixelNV21
	PixelBGRA
)

func (f PixelFormat) String() string {
	switch f {
	case PixelBGR:
		return "bgr"
	case PixelRGB:
		return "rgb"
	case PixelGrayscale:
		return "grayscale"
	case PixelNV12:
		return "nv12"
	case PixelNV21:
		return "nv21"
	case PixelBGRA:
		return "bgra"
	}
	return fmt.Sprintf("pixel(%d)", int32(f))
}

// channels is the tensor channel count f requires.
func (f PixelFormat) channels() int {
	switch f {
	case PixelBGR, PixelRGB:
		return 3
	case PixelGrayscale, PixelNV12, PixelNV21:
		return 1
	case PixelBGRA:
		return 4
	}
	return 0
}

// semiPlanar reports whether f stores a full-size luma plane followed by an
// interleaved half-size chroma plane.
func (f PixelFormat) semiPlanar() bool {
	return f == PixelNV12 || f == PixelNV21
}

// DataType is the element type of a Mat.
type DataType int32

const (
	DataFloat DataType = iota
	DataHalf
	DataUint8
	DataInt32
)

// Mat is one input image. The tensor is laid out [height, width, channels]
// in row-major order. NV12/NV21 frames carry the interleaved chroma plane
// below the luma plane, so their tensor is [height*3/2, width, 1].
//
// A Mat is owned by the caller and must not be mutated while an apply that
// uses it is in flight.
type Mat struct {
	Tensor *tensor.Dense
	Format PixelFormat
}

// NewMat wraps 8-bit pixel data of the given size without copying.
func NewMat(height, width int, format PixelFormat, pix []uint8) (Mat, error) {
	rows := height
	if format.semiPlanar() {
		if height%2 != 0 || width%2 != 0 {
			return Mat{}, fmt.Errorf("mmdeploy: %s mat %dx%d needs even dimensions", format, width, height)
		}
		rows = height * 3 / 2
	}
	c := format.channels()
	if c == 0 {
		return Mat{}, fmt.Errorf("mmdeploy: unknown pixel format %d", int32(format))
	}
	if height <= 0 || width <= 0 || len(pix) != rows*width*c {
		return Mat{}, fmt.Errorf("mmdeploy: %s mat %dx%d needs %d bytes, got %d",
			format, width, height, rows*width*c, len(pix))
	}
	t := tensor.New(tensor.WithShape(rows, width, c), tensor.WithBacking(pix))
	return Mat{Tensor: t, Format: format}, nil
}

// Height returns the image height in pixels.
func (m Mat) Height() int {
	if m.Tensor == nil || m.Tensor.Dims() != 3 {
		return 0
	}
	rows := m.Tensor.Shape()[0]
	if m.Format.semiPlanar() {
		return rows * 2 / 3
	}
	return rows
}

// Width returns the image width in pixels.
func (m Mat) Width() int {
	if m.Tensor == nil || m.Tensor.Dims() != 3 {
		return 0
	}
	return m.Tensor.Shape()[1]
}

// Image is the engine-side descriptor of a Mat: the raw byte view plus the
// geometry and type tags the native mat struct carries. Tensor points back
// at the source for engines that compute in Go.
type Image struct {
	Tensor   *tensor.Dense
	Data     []byte
	Height   int
	Width    int
	Channels int
	Format   PixelFormat
	Type     DataType
}

// encodeMat translates a Mat into its engine descriptor, rejecting anything
// the native mat struct cannot describe.
func encodeMat(m Mat) (Image, error) {
	d := m.Tensor
	if d == nil {
		return Image{}, fmt.Errorf("nil tensor")
	}
	if d.Dims() != 3 {
		return Image{}, fmt.Errorf("tensor shape %v is not [h w c]", d.Shape())
	}
	if d.RequiresIterator() {
		return Image{}, fmt.Errorf("tensor is a non-contiguous view")
	}
	shape := d.Shape()
	rows, width, c := shape[0], shape[1], shape[2]
	if rows <= 0 || width <= 0 {
		return Image{}, fmt.Errorf("empty tensor shape %v", shape)
	}
	if want := m.Format.channels(); want == 0 || want != c {
		return Image{}, fmt.Errorf("%s expects %d channels, tensor has %d", m.Format, want, c)
	}
	if m.Format.semiPlanar() && (rows%3 != 0 || (rows/3)%2 != 0 || width%2 != 0) {
		return Image{}, fmt.Errorf("%s tensor shape %v does not hold an even-sized frame", m.Format, shape)
	}

	img := Image{
		Tensor:   d,
		Height:   m.Height(),
		Width:    width,
		Channels: c,
		Format:   m.Format,
	}
	n := rows * width * c
	switch data := d.Data().(type) {
	case []uint8:
		img.Type = DataUint8
		img.Data = data[:n]
	case []float32:
		img.Type = DataFloat
		img.Data = unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), n*4)
	case []int32:
		img.Type = DataInt32
		img.Data = unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), n*4)
	default:
		return Image{}, fmt.Errorf("unsupported dtype %v", d.Dtype())
	}
	return img, nil
}

func encodeMats(op string, h Raw, mats []Mat) ([]Image, error) {
	if len(mats) == 0 {
		return nil, precondition(op, h, "empty batch")
	}
	imgs := make([]Image, len(mats))
	for i, m := range mats {
		img, err := encodeMat(m)
		if err != nil {
			return nil, precondition(op, h, "mat %d: %v", i, err)
		}
		imgs[i] = img
	}
	return imgs, nil
}
