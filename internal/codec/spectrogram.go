package codec

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/mjibson/go-dsp/fft"
)

const (
	spectrogramWidth  = 800
	spectrogramHeight = 200
	spectrogramFFTLen = 1024
)

// GenerateSpectrogram renders a PNG spectrogram of mono samples, one
// column per time slice and one row per frequency bin. It is a
// read-only diagnostic over already-signed audio; nothing about the
// watermark embed/extract path consults it.
func GenerateSpectrogram(mono []float64) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, spectrogramWidth, spectrogramHeight))

	step := len(mono) / spectrogramWidth
	if step < spectrogramFFTLen {
		step = spectrogramFFTLen
	}

	for x := 0; x < spectrogramWidth; x++ {
		start := x * step
		if start+spectrogramFFTLen > len(mono) {
			break
		}

		window := make([]float64, spectrogramFFTLen)
		copy(window, mono[start:start+spectrogramFFTLen])

		coeffs := fft.FFTReal(window)

		for y := 0; y < spectrogramHeight; y++ {
			idx := (spectrogramHeight - 1 - y) * (spectrogramFFTLen / 2) / spectrogramHeight
			mag := math.Hypot(real(coeffs[idx]), imag(coeffs[idx]))

			intensity := uint8(math.Min(mag*4, 255))
			img.Set(x, y, color.RGBA{R: intensity / 2, G: intensity, B: intensity / 2, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
