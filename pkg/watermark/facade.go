// Package watermark implements the spread-spectrum audio watermark
// codec: Sign embeds a secret-keyed 128-bit signature into stereo
// float32 PCM; Detect recovers it and resolves it through a
// caller-supplied Lookup collaborator.
package watermark

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"sonicmark/internal/frame"
	"sonicmark/internal/pn"
	"sonicmark/internal/wavio"
	"sonicmark/pkg/wmspec"
)

func optionsWithDefaults(opts Options) (Options, error) {
	if opts.Secret == "" {
		return opts, newError(ErrInvalidConfig, "secret is required", nil)
	}
	if opts.SampleRate < 0 {
		return opts, newError(ErrInvalidConfig, "sample rate must be positive", nil)
	}
	if opts.SampleRate == 0 {
		opts.SampleRate = wmspec.DefaultSampleRate
	}
	if opts.Channels < 0 {
		return opts, newError(ErrInvalidConfig, "channel count must be positive", nil)
	}
	if opts.Channels == 0 {
		opts.Channels = wmspec.DefaultChannels
	}
	if opts.HopSize < 0 {
		return opts, newError(ErrInvalidConfig, "hop size must be positive", nil)
	}
	if opts.HopSize == 0 {
		opts.HopSize = wmspec.DefaultHopSize
	}
	if opts.EmbedStrength < 0 {
		return opts, newError(ErrInvalidConfig, "embed strength must be positive", nil)
	}
	if opts.EmbedStrength == 0 {
		opts.EmbedStrength = wmspec.DefaultEmbedStrength
	}
	if opts.PriorKey != nil && len(opts.PriorKey) != wmspec.PayloadBytes {
		return opts, newError(ErrInvalidConfig, "prior key must be payload_bytes long", nil)
	}
	return opts, nil
}

func samplesPerBit(hopSize int) int {
	return wmspec.SamplesPerBitMultiplier * hopSize
}

// Sign embeds a freshly minted 128-bit signature key into the audio at
// inputPath and writes the result to outputPath, returning the minted
// key, its payload hash, and the payload record. If opts.PriorKey is
// set, the modulation of its frame is subtracted from the samples while
// the new frame is added, so a re-signed file carries only the newly
// minted key.
func Sign(ctx context.Context, inputPath, outputPath, project, recipient string, opts Options) (*SignResult, error) {
	opts, err := optionsWithDefaults(opts)
	if err != nil {
		return nil, err
	}

	key := make([]byte, wmspec.PayloadBytes)
	if _, err := rand.Read(key); err != nil {
		return nil, newError(ErrIoFailure, "minting signature key", err)
	}
	signatureID := uuid.Must(uuid.FromBytes(key)).String()

	payload := Payload{
		SignatureKey: signatureID,
		Project:      project,
		Recipient:    recipient,
		CreatedAt:    time.Now().UTC(),
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, newError(ErrIoFailure, "serializing payload", err)
	}
	payloadHash := sha256.Sum256(payloadJSON)

	in, err := os.Open(inputPath)
	if err != nil {
		return nil, newError(ErrIoFailure, "opening input WAV", err)
	}
	defer in.Close()

	wav, err := wavio.Read(in)
	if err != nil {
		return nil, newError(ErrIoFailure, "reading input WAV", err)
	}
	if wav.SampleRate != opts.SampleRate || wav.Channels != opts.Channels {
		return nil, newError(ErrFormatMismatch, fmt.Sprintf("got %dHz/%dch, expected %dHz/%dch",
			wav.SampleRate, wav.Channels, opts.SampleRate, opts.Channels), nil)
	}

	spb := samplesPerBit(opts.HopSize)
	if len(wav.Samples)/wav.Channels < wmspec.FramePeriod*spb {
		return nil, newError(ErrShortInput, "input shorter than one frame period", nil)
	}

	bank := pn.NewBank(opts.Secret, spb, wmspec.FramePeriod)

	bitstream := frame.Build(key)

	var removeBitstream []byte
	if opts.PriorKey != nil {
		removeBitstream = frame.Build(opts.PriorKey)
	}

	left, right := splitChannels(wav.Samples, wav.Channels)
	embedBlocks(left, right, bank, bitstream, removeBitstream, opts.EmbedStrength, spb)
	wav.Samples = mergeChannels(left, right, wav.Channels)

	out, err := os.Create(outputPath)
	if err != nil {
		return nil, newError(ErrIoFailure, "creating output WAV", err)
	}
	defer out.Close()

	if err := wavio.Write(out, wav); err != nil {
		return nil, newError(ErrIoFailure, "writing output WAV", err)
	}

	return &SignResult{
		OutputPath:  outputPath,
		SignatureID: signatureID,
		PayloadHash: hex.EncodeToString(payloadHash[:]),
		Payload:     payload,
	}, nil
}

// Detect recovers a signature key from the audio at inputPath, resolves
// it through lookup, and reports a confidence score. Decode-layer
// failures (NoSync, UncorrectableCodeword, ShortInput, LookupMiss) are
// folded into a non-error detected=false result rather than propagated.
func Detect(ctx context.Context, inputPath string, opts Options, lookup Lookup) (*DetectResult, error) {
	opts, err := optionsWithDefaults(opts)
	if err != nil {
		return nil, err
	}

	in, err := os.Open(inputPath)
	if err != nil {
		return nil, newError(ErrIoFailure, "opening input WAV", err)
	}
	defer in.Close()

	wav, err := wavio.Read(in)
	if err != nil {
		return nil, newError(ErrIoFailure, "reading input WAV", err)
	}
	if wav.SampleRate != opts.SampleRate || wav.Channels != opts.Channels {
		return nil, newError(ErrFormatMismatch, fmt.Sprintf("got %dHz/%dch, expected %dHz/%dch",
			wav.SampleRate, wav.Channels, opts.SampleRate, opts.Channels), nil)
	}

	spb := samplesPerBit(opts.HopSize)
	if len(wav.Samples)/wav.Channels < wmspec.FramePeriod*spb {
		return &DetectResult{Detected: false, Confidence: 0}, nil
	}

	bank := pn.NewBank(opts.Secret, spb, wmspec.FramePeriod)

	left, right := splitChannels(wav.Samples, wav.Channels)
	extraction := extractBlocks(left, right, bank, spb)

	votedBits := softVote(extraction.Correlations, wmspec.FramePeriod)
	parsed := frame.Parse(votedBits)

	agreement := bandAgreement(extraction.Energies, wmspec.FramePeriod)

	stats := DetectStats{
		BitConfidence:  extraction.MeanConf,
		BandAgreement:  agreement,
		BlocksAnalyzed: extraction.Blocks,
		ErrorCount:     parsed.RSErrors,
	}

	if parsed.Kind != frame.KindNone {
		return &DetectResult{Detected: false, Confidence: 0, Stats: stats}, nil
	}

	signatureID := uuid.Must(uuid.FromBytes(parsed.Key)).String()
	payloadHash := hex.EncodeToString(parsed.KeyHash[:])

	var payload *Payload
	if lookup != nil {
		p, err := lookup.Find(ctx, signatureID)
		if err != nil {
			return nil, newError(ErrIoFailure, "calling lookup collaborator", err)
		}
		payload = p
	}

	detected := payload != nil
	confidence := confidenceScore(stats, parsed.Corrected, detected)

	return &DetectResult{
		Detected:    detected,
		Confidence:  confidence,
		Payload:     payload,
		PayloadHash: payloadHash,
		Stats:       stats,
	}, nil
}

// confidenceScore blends the extractor's soft confidence, the
// energy-based band agreement, the RS error count, whether RS actually corrected
// anything, and whether lookup resolved a payload.
func confidenceScore(stats DetectStats, rsCorrected, lookupHit bool) int {
	rsErrorTerm := 1.0 - float64(stats.ErrorCount)/float64(wmspec.RSParityBytes)
	if rsErrorTerm < 0 {
		rsErrorTerm = 0
	}

	var correctedTerm, lookupTerm float64
	if rsCorrected {
		correctedTerm = 1
	}
	if lookupHit {
		lookupTerm = 1
	}

	score := 100 * (0.35*stats.BitConfidence +
		0.20*stats.BandAgreement +
		0.20*rsErrorTerm +
		0.15*correctedTerm +
		0.10*lookupTerm)

	return int(score + 0.5)
}
