package mmdeploy_test

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csotherden/gorgonia-mmdeploy/mmdeploy"
)

func TestMatFromImageChannelOrder(t *testing.T) {
	img := imaging.New(2, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	bgr, err := mmdeploy.MatFromImage(img, mmdeploy.PixelBGR)
	require.NoError(t, err)
	assert.Equal(t, []uint8{30, 20, 10, 30, 20, 10}, bgr.Tensor.Data())

	rgb, err := mmdeploy.MatFromImage(img, mmdeploy.PixelRGB)
	require.NoError(t, err)
	assert.Equal(t, []uint8{10, 20, 30, 10, 20, 30}, rgb.Tensor.Data())

	bgra, err := mmdeploy.MatFromImage(img, mmdeploy.PixelBGRA)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 4}, []int(bgra.Tensor.Shape()))

	gray, err := mmdeploy.MatFromImage(img, mmdeploy.PixelGrayscale)
	require.NoError(t, err)
	assert.Equal(t, 1, gray.Tensor.Shape()[2])

	_, err = mmdeploy.MatFromImage(img, mmdeploy.PixelNV12)
	assert.Error(t, err)
}

func TestLoadMatResizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	src := image.NewNRGBA(image.Rect(0, 0, 8, 4))
	require.NoError(t, imaging.Save(src, path))

	m, err := mmdeploy.LoadMat(path, 4, 2, mmdeploy.PixelBGR)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Height())
	assert.Equal(t, 4, m.Width())

	m, err = mmdeploy.LoadMat(path, 0, 0, mmdeploy.PixelRGB)
	require.NoError(t, err)
	assert.Equal(t, 4, m.Height())
	assert.Equal(t, 8, m.Width())

	_, err = mmdeploy.LoadMat(filepath.Join(t.TempDir(), "missing.png"), 0, 0, mmdeploy.PixelBGR)
	assert.Error(t, err)
}
