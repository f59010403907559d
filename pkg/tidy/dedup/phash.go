package dedup

import (
	"fmt"
	"image"
	"math"
	"math/bits"
	"os"

	// Decoders registered for image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	phashSample = 32
	phashLow    = 8
)

// dctTable[u][x] = cos((2x+1)uπ / 2N)
var dctTable = func() [phashSample][phashSample]float64 {
	var t [phashSample][phashSample]float64
	for u := range phashSample {
		for x := range phashSample {
			t[u][x] = math.Cos(float64(2*x+1) * float64(u) * math.Pi / (2 * phashSample))
		}
	}
	return t
}()

// PHash decodes the image at path and returns its 64-bit perceptual hash.
func PHash(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return 0, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return PHashImage(img), nil
}

// PHashImage computes a DCT hash: the image is reduced to a 32x32 gray
// sample, transformed, and the 8x8 lowest frequencies are compared against
// their mean (the DC term excluded). Bit 63 is the (0,0) coefficient.
func PHashImage(img image.Image) uint64 {
	gray := image.NewGray(image.Rect(0, 0, phashSample, phashSample))
	draw.ApproxBiLinear.Scale(gray, gray.Bounds(), img, img.Bounds(), draw.Src, nil)

	var pixels [phashSample][phashSample]float64
	for y := range phashSample {
		for x := range phashSample {
			pixels[y][x] = float64(gray.GrayAt(x, y).Y)
		}
	}

	// Separable 2D DCT-II, only the low rows and columns are needed.
	var rows [phashSample][phashLow]float64
	for y := range phashSample {
		for u := range phashLow {
			var sum float64
			for x := range phashSample {
				sum += pixels[y][x] * dctTable[u][x]
			}
			rows[y][u] = sum
		}
	}
	var coeff [phashLow][phashLow]float64
	for v := range phashLow {
		for u := range phashLow {
			var sum float64
			for y := range phashSample {
				sum += rows[y][u] * dctTable[v][y]
			}
			coeff[v][u] = sum
		}
	}

	var total float64
	for v := range phashLow {
		for u := range phashLow {
			if u == 0 && v == 0 {
				continue
			}
			total += coeff[v][u]
		}
	}
	mean := total / (phashLow*phashLow - 1)

	var hash uint64
	for v := range phashLow {
		for u := range phashLow {
			hash <<= 1
			if coeff[v][u] >= mean {
				hash |= 1
			}
		}
	}
	return hash
}

// Hamming returns the number of differing bits.
func Hamming(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
