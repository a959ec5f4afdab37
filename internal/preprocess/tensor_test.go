package preprocess

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeProducesNormalizedTensor(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 31, 17))
	for y := 0; y < 17; y++ {
		for x := 0; x < 31; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}

	tensor, err := Decode(encodeJPEG(t, img), 8)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}

	if got, want := len(tensor.Data), 8*8*3; got != want {
		t.Fatalf("tensor length = %d, want %d", got, want)
	}
	wantShape := []int64{1, 8, 8, 3}
	for i, d := range tensor.Shape() {
		if d != wantShape[i] {
			t.Fatalf("shape = %v, want %v", tensor.Shape(), wantShape)
		}
	}
	for i, v := range tensor.Data {
		if v < 0 || v > 1 {
			t.Fatalf("value %f at %d outside [0,1]", v, i)
		}
		// uniform gray, allow JPEG quantization noise
		if v < 0.45 || v > 0.55 {
			t.Fatalf("value %f at %d too far from 128/255", v, i)
		}
	}
}

func TestDecodeInvalidBytes(t *testing.T) {
	_, err := Decode([]byte("not an image"), 8)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
}

func TestDecodeEmptyBytes(t *testing.T) {
	_, err := Decode(nil, 8)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
}

func TestFromImageCornerAlignment(t *testing.T) {
	// 2x2 source with distinct corners; corner-aligned sampling must map
	// destination corners exactly onto source corners.
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{G: 255, A: 255})
	src.SetNRGBA(0, 1, color.NRGBA{B: 255, A: 255})
	src.SetNRGBA(1, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	const size = 5
	tensor := FromImage(src, size)

	corner := func(x, y int) [3]float32 {
		idx := (y*size + x) * 3
		return [3]float32{tensor.Data[idx], tensor.Data[idx+1], tensor.Data[idx+2]}
	}

	if got := corner(0, 0); got != [3]float32{1, 0, 0} {
		t.Fatalf("top-left = %v, want red", got)
	}
	if got := corner(size-1, 0); got != [3]float32{0, 1, 0} {
		t.Fatalf("top-right = %v, want green", got)
	}
	if got := corner(0, size-1); got != [3]float32{0, 0, 1} {
		t.Fatalf("bottom-left = %v, want blue", got)
	}
	if got := corner(size-1, size-1); got != [3]float32{1, 1, 1} {
		t.Fatalf("bottom-right = %v, want white", got)
	}

	// centre pixel interpolates all four corners equally
	mid := corner(2, 2)
	for c, v := range mid {
		if v < 0.49 || v > 0.51 {
			t.Fatalf("centre channel %d = %f, want 0.5", c, v)
		}
	}
}

func TestFromImageSinglePixelSource(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 51, G: 102, B: 204, A: 255})

	tensor := FromImage(src, 4)
	for i := 0; i < len(tensor.Data); i += 3 {
		if tensor.Data[i] != 51.0/255 || tensor.Data[i+1] != 102.0/255 || tensor.Data[i+2] != 204.0/255 {
			t.Fatalf("pixel %d = %v, want constant source color", i/3, tensor.Data[i:i+3])
		}
	}
}
