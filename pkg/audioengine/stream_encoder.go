// Package audioengine bridges this module's float64 sample buffers to
// the go-audio/audio + go-audio/wav + hraban/opus stack the survivability
// harness (cmd/sonicmark-xcode) transcodes through.
package audioengine

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hraban/opus"
)

// EncoderResult is one Opus frame, or the error that ended the stream.
type EncoderResult struct {
	Frame []byte
	Error error
}

// ToIntBuffer rescales interleaved float64 samples (as read by
// internal/wavio, in [-1, 1] nominal range) into a go-audio/audio
// IntBuffer of 16-bit PCM, the format go-audio/wav and hraban/opus
// both expect.
func ToIntBuffer(samples []float64, sampleRate, channels int) *audio.IntBuffer {
	data := make([]int, len(samples))
	for i, s := range samples {
		v := s * 32767.0
		if v > 32767 {
			v = 32767
		}
		if v < -32768 {
			v = -32768
		}
		data[i] = int(v)
	}
	return &audio.IntBuffer{
		Data:   data,
		Format: &audio.Format{NumChannels: channels, SampleRate: sampleRate},
	}
}

// FromIntBuffer is the inverse of ToIntBuffer, rescaling 16-bit PCM
// back to the [-1, 1] float64 range internal/wavio expects.
func FromIntBuffer(buf *audio.IntBuffer) []float64 {
	out := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		out[i] = float64(v) / 32767.0
	}
	return out
}

// WriteStandardWav writes buf as a conventional 16-bit PCM WAV, so the
// pre-Opus intermediate can be inspected with ordinary tools.
func WriteStandardWav(path string, buf *audio.IntBuffer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audioengine: creating %s: %w", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, buf.Format.SampleRate, 16, buf.Format.NumChannels, 1)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("audioengine: writing %s: %w", path, err)
	}
	return enc.Close()
}

// ReadStandardWav reads a conventional PCM WAV back into an IntBuffer.
func ReadStandardWav(path string) (*audio.IntBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audioengine: opening %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("audioengine: reading %s: %w", path, err)
	}
	return buf, nil
}

// StreamEncode chunks buf into 20ms Opus frames, pushing each one to
// resultChan as it's produced rather than returning the whole set at
// once. resultChan is closed when encoding finishes or fails.
func StreamEncode(buf *audio.IntBuffer, resultChan chan<- EncoderResult) (float64, error) {
	defer close(resultChan)

	channels := buf.Format.NumChannels
	rate := buf.Format.SampleRate

	enc, err := opus.NewEncoder(rate, channels, opus.AppAudio)
	if err != nil {
		return 0, err
	}

	frameSize := rate / 50
	sampleSize := frameSize * channels
	pcmBuf := make([]int16, sampleSize)
	opusBuf := make([]byte, 4000)

	n := len(buf.Data)
	totalSamples := 0
	for i := 0; i < n; i += sampleSize {
		end := i + sampleSize
		actual := sampleSize
		if end > n {
			actual = n - i
			for j := range pcmBuf {
				pcmBuf[j] = 0
			}
		}
		for j := 0; j < actual; j++ {
			pcmBuf[j] = int16(buf.Data[i+j])
		}

		size, err := enc.Encode(pcmBuf, opusBuf)
		if err != nil {
			resultChan <- EncoderResult{Error: err}
			return 0, err
		}

		frame := make([]byte, size)
		copy(frame, opusBuf[:size])
		resultChan <- EncoderResult{Frame: frame}
		totalSamples += actual
	}

	duration := float64(totalSamples) / float64(rate) / float64(channels)
	return duration, nil
}
