// Package preprocess converts raw photo bytes into normalized model input
// tensors.
package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// ErrDecode marks photo bytes that could not be decoded into a usable image.
// Callers skip the offending photo and keep scanning.
var ErrDecode = errors.New("image decode failed")

// ImageTensor is a (1, Size, Size, 3) float32 tensor in NHWC layout with
// values normalized to [0,1]. It is built once per photo and discarded after
// a single inference call.
type ImageTensor struct {
	Data []float32
	Size int
}

// Shape returns the tensor dimensions in NHWC order.
func (t *ImageTensor) Shape() []int64 {
	return []int64{1, int64(t.Size), int64(t.Size), 3}
}

// Decode decodes JPEG (or any registered format) bytes, resizes to a
// size x size square and normalizes to [0,1], dropping alpha.
func Decode(data []byte, size int) (*ImageTensor, error) {
	if size < 2 {
		return nil, fmt.Errorf("target size must be at least 2, got %d", size)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() < 1 || bounds.Dy() < 1 {
		return nil, fmt.Errorf("%w: zero-size image", ErrDecode)
	}

	return FromImage(imaging.Clone(img), size), nil
}

// FromImage resamples an already-decoded pixel buffer into a normalized
// tensor. Sampling is bilinear with corner alignment: src = dst/(dst-1) *
// (src-1) per axis, clamped at the far edge, so corner pixels map exactly.
func FromImage(src *image.NRGBA, size int) *ImageTensor {
	srcW := src.Bounds().Dx()
	srcH := src.Bounds().Dy()
	data := make([]float32, size*size*3)

	for dy := 0; dy < size; dy++ {
		sy := float64(dy) / float64(size-1) * float64(srcH-1)
		y0 := int(sy)
		y1 := y0 + 1
		if y1 > srcH-1 {
			y1 = srcH - 1
		}
		fy := sy - float64(y0)

		for dx := 0; dx < size; dx++ {
			sx := float64(dx) / float64(size-1) * float64(srcW-1)
			x0 := int(sx)
			x1 := x0 + 1
			if x1 > srcW-1 {
				x1 = srcW - 1
			}
			fx := sx - float64(x0)

			idx := (dy*size + dx) * 3
			for c := 0; c < 3; c++ {
				v00 := float64(src.Pix[y0*src.Stride+x0*4+c]) / 255.0
				v10 := float64(src.Pix[y0*src.Stride+x1*4+c]) / 255.0
				v01 := float64(src.Pix[y1*src.Stride+x0*4+c]) / 255.0
				v11 := float64(src.Pix[y1*src.Stride+x1*4+c]) / 255.0

				top := v00*(1-fx) + v10*fx
				bottom := v01*(1-fx) + v11*fx
				data[idx+c] = float32(top*(1-fy) + bottom*fy)
			}
		}
	}

	return &ImageTensor{Data: data, Size: size}
}
