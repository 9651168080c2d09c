package mmdeploy

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// MatFromImage copies img into a new 8-bit Mat in the requested format.
// Only packed formats (BGR, RGB, BGRA, grayscale) can be produced.
func MatFromImage(img image.Image, format PixelFormat) (Mat, error) {
	switch format {
	case PixelBGR, PixelRGB, PixelBGRA, PixelGrayscale:
	default:
		return Mat{}, fmt.Errorf("mmdeploy: cannot convert image to %s", format)
	}

	if format == PixelGrayscale {
		img = imaging.Grayscale(img)
	}
	src := imaging.Clone(img)
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	c := format.channels()

	pix := make([]uint8, w*h*c)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		for x := 0; x < w; x++ {
			r, g, bl, a := row[x*4], row[x*4+1], row[x*4+2], row[x*4+3]
			o := (y*w + x) * c
			switch format {
			case PixelRGB:
				pix[o], pix[o+1], pix[o+2] = r, g, bl
			case PixelBGR:
				pix[o], pix[o+1], pix[o+2] = bl, g, r
			case PixelBGRA:
				pix[o], pix[o+1], pix[o+2], pix[o+3] = bl, g, r, a
			case PixelGrayscale:
				pix[o] = r
			}
		}
	}
	return NewMat(h, w, format, pix)
}

// LoadMat decodes the image file at path and converts it to format. When
// width and height are both positive the image is resized to exactly that
// size first.
func LoadMat(path string, width, height int, format PixelFormat) (Mat, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return Mat{}, fmt.Errorf("mmdeploy: load %s: %w", path, err)
	}
	if width > 0 && height > 0 {
		img = imaging.Resize(img, width, height, imaging.Lanczos)
	}
	return MatFromImage(img, format)
}
