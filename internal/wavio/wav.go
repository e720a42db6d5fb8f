// Package wavio reads and writes the exact RIFF/WAVE layout the
// watermark codec requires: a fmt chunk declaring 32-bit IEEE float
// samples, a single data chunk, and no extension bytes on write.
// go-audio/wav targets general-purpose int PCM; this format's
// minimal-header, skip-unknown-chunks, float32-exact contract is
// hand-rolled instead, in the same manual encoding/binary style the
// rest of this codebase uses for its binary formats.
package wavio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const (
	fmtAudioFormatFloat = 3
	fmtBitsPerSample    = 32
	fmtChunkSize        = 16
)

// Data is a decoded WAV file: sample rate, channel count, and
// interleaved float32 samples (stored as float64 for processing
// headroom).
type Data struct {
	SampleRate int
	Channels   int
	Samples    []float64
}

type riffHeader struct {
	ChunkID   [4]byte
	ChunkSize uint32
	Format    [4]byte
}

type fmtChunk struct {
	SubchunkID   [4]byte
	SubchunkSize uint32
	AudioFormat  uint16
	NumChannels  uint16
	SampleRate   uint32
	ByteRate     uint32
	BlockAlign   uint16
	BitsPerSample uint16
}

type chunkHeader struct {
	ID   [4]byte
	Size uint32
}

// Read parses a 32-bit float RIFF/WAVE stream, skipping any unknown
// chunks between fmt and data.
func Read(r io.Reader) (*Data, error) {
	var riff riffHeader
	if err := binary.Read(r, binary.LittleEndian, &riff); err != nil {
		return nil, fmt.Errorf("wavio: reading RIFF header: %w", err)
	}
	if string(riff.ChunkID[:]) != "RIFF" || string(riff.Format[:]) != "WAVE" {
		return nil, fmt.Errorf("wavio: not a RIFF/WAVE stream")
	}

	var fc fmtChunk
	if err := binary.Read(r, binary.LittleEndian, &fc); err != nil {
		return nil, fmt.Errorf("wavio: reading fmt chunk: %w", err)
	}
	if string(fc.SubchunkID[:]) != "fmt " {
		return nil, fmt.Errorf("wavio: missing fmt chunk")
	}
	if fc.SubchunkSize > fmtChunkSize {
		if _, err := io.CopyN(io.Discard, r, int64(fc.SubchunkSize-fmtChunkSize)); err != nil {
			return nil, fmt.Errorf("wavio: skipping fmt extension: %w", err)
		}
	}
	if fc.AudioFormat != fmtAudioFormatFloat || fc.BitsPerSample != fmtBitsPerSample {
		return nil, fmt.Errorf("wavio: only 32-bit IEEE float WAV is supported")
	}

	var dh chunkHeader
	for {
		if err := binary.Read(r, binary.LittleEndian, &dh); err != nil {
			return nil, fmt.Errorf("wavio: reading chunk header: %w", err)
		}
		if string(dh.ID[:]) == "data" {
			break
		}
		if _, err := io.CopyN(io.Discard, r, int64(dh.Size)); err != nil {
			return nil, fmt.Errorf("wavio: skipping chunk %q: %w", dh.ID, err)
		}
	}

	sampleCount := dh.Size / 4
	samples := make([]float64, sampleCount)
	buf := make([]byte, dh.Size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("wavio: reading data chunk: %w", err)
	}
	for i := range samples {
		bits := binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
		samples[i] = float64(math.Float32frombits(bits))
	}

	return &Data{
		SampleRate: int(fc.SampleRate),
		Channels:   int(fc.NumChannels),
		Samples:    samples,
	}, nil
}

// Write emits a minimal 44-byte-header RIFF/WAVE stream: fmt chunk
// with no extension bytes, followed by one data chunk.
func Write(w io.Writer, d *Data) error {
	dataSize := uint32(len(d.Samples) * 4)
	riffSize := uint32(4 + (8+fmtChunkSize) + (8 + int(dataSize)))

	riff := riffHeader{ChunkID: [4]byte{'R', 'I', 'F', 'F'}, ChunkSize: riffSize, Format: [4]byte{'W', 'A', 'V', 'E'}}
	if err := binary.Write(w, binary.LittleEndian, &riff); err != nil {
		return fmt.Errorf("wavio: writing RIFF header: %w", err)
	}

	bitsPerSample := uint16(fmtBitsPerSample)
	numChannels := uint16(d.Channels)
	sampleRate := uint32(d.SampleRate)
	fc := fmtChunk{
		SubchunkID:    [4]byte{'f', 'm', 't', ' '},
		SubchunkSize:  fmtChunkSize,
		AudioFormat:   fmtAudioFormatFloat,
		NumChannels:   numChannels,
		SampleRate:    sampleRate,
		ByteRate:      sampleRate * uint32(numChannels) * uint32(bitsPerSample/8),
		BlockAlign:    numChannels * (bitsPerSample / 8),
		BitsPerSample: bitsPerSample,
	}
	if err := binary.Write(w, binary.LittleEndian, &fc); err != nil {
		return fmt.Errorf("wavio: writing fmt chunk: %w", err)
	}

	dh := chunkHeader{ID: [4]byte{'d', 'a', 't', 'a'}, Size: dataSize}
	if err := binary.Write(w, binary.LittleEndian, &dh); err != nil {
		return fmt.Errorf("wavio: writing data chunk header: %w", err)
	}

	buf := make([]byte, dataSize)
	for i, s := range d.Samples {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(float32(s)))
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("wavio: writing samples: %w", err)
	}
	return nil
}
