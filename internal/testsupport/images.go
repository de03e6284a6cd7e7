package testsupport

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Solid returns a uniform grayscale image.
func Solid(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// Split returns an image whose left half is left and right half is right.
func Split(w, h int, left, right uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := left
			if x >= w/2 {
				v = right
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

// Checkerboard returns alternating cell x cell squares of a and b.
func Checkerboard(w, h, cell int, a, b uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := a
			if (x/cell+y/cell)%2 == 1 {
				v = b
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

// Noisy returns a copy of img with deterministic uniform noise in [-amp, amp].
func Noisy(img *image.Gray, amp int, seed uint64) *image.Gray {
	out := image.NewGray(img.Rect)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for i, v := range img.Pix {
		n := int(v) + rng.IntN(2*amp+1) - amp
		out.Pix[i] = uint8(min(max(n, 0), 255))
	}
	return out
}

// ToRGBA converts img into an *image.RGBA.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, img.At(x, y))
		}
	}
	return out
}

// WriteImage encodes img to path as JPEG or PNG depending on the extension.
func WriteImage(t testing.TB, path string, img image.Image) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		err = png.Encode(f, img)
	default:
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 95})
	}
	if err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}
