package watermark

import (
	"context"
	"time"
)

// Payload is the caller-owned metadata record associated with one
// signature key. It carries nothing beyond what spec.md's data model
// names.
type Payload struct {
	SignatureKey string    `json:"signature_key"`
	Project      string    `json:"project"`
	Recipient    string    `json:"recipient"`
	CreatedAt    time.Time `json:"created_at"`
}

// Options configures Sign and Detect. Secret is required; the rest
// fall back to the package defaults in pkg/wmspec.
type Options struct {
	Secret        string
	SampleRate    int
	Channels      int
	EmbedStrength float64
	HopSize       int

	// PriorKey, if set, is a previously embedded signature key. Sign
	// subtracts the modulation of its frame from the samples during
	// embedding so a re-signed file carries only the freshly minted key.
	PriorKey []byte
}

// Lookup resolves a recovered signature key to its stored payload. It
// may be backed by a remote call; the codec awaits it either way.
type Lookup interface {
	Find(ctx context.Context, signatureKey string) (*Payload, error)
}

// LookupFunc adapts a plain function to Lookup.
type LookupFunc func(ctx context.Context, signatureKey string) (*Payload, error)

func (f LookupFunc) Find(ctx context.Context, signatureKey string) (*Payload, error) {
	return f(ctx, signatureKey)
}

// SignResult is returned by Sign.
type SignResult struct {
	OutputPath  string
	SignatureID string // canonical UUID string
	PayloadHash string // hex SHA-256
	Payload     Payload
}

// DetectStats carries the soft-information diagnostics spec.md names
// for DetectResult.
type DetectStats struct {
	BitConfidence  float64
	BandAgreement  float64
	BlocksAnalyzed int
	ErrorCount     int
}

// DetectResult is returned by Detect.
type DetectResult struct {
	Detected    bool
	Confidence  int
	Payload     *Payload
	PayloadHash string
	Stats       DetectStats
}
