package watermark

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"sonicmark/internal/wavio"
	"sonicmark/pkg/wmspec"
)

// testOptions uses a smaller hop size (1024 samples per bit) so a test
// frame needs about 475k samples per channel instead of the default's
// ~1.9M. Much shorter blocks do not work: the carrier's 65-sample
// low-pass and 513-sample DC-removal windows would cover the whole
// block and leave a zero carrier.
func testOptions(secret string) Options {
	return Options{
		Secret:        secret,
		SampleRate:    8000,
		Channels:      2,
		HopSize:       256,
		EmbedStrength: wmspec.DefaultEmbedStrength,
	}
}

// writeHostWav writes a deterministic pseudo-random stereo host signal
// of the given number of frame periods to path. The host is quiet
// (peak 0.01) so two folded periods recover every frame bit.
func writeHostWav(t *testing.T, path string, opts Options, periods int) {
	t.Helper()
	spb := samplesPerBit(opts.HopSize)
	frames := periods * wmspec.FramePeriod * spb

	rng := rand.New(rand.NewSource(42))
	samples := make([]float64, frames*opts.Channels)
	for i := range samples {
		samples[i] = (rng.Float64()*2 - 1) * 0.01
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating host wav: %v", err)
	}
	defer f.Close()

	d := &wavio.Data{SampleRate: opts.SampleRate, Channels: opts.Channels, Samples: samples}
	if err := wavio.Write(f, d); err != nil {
		t.Fatalf("writing host wav: %v", err)
	}
}

type fakeLookup struct {
	payload *Payload
}

func (f fakeLookup) Find(ctx context.Context, signatureKey string) (*Payload, error) {
	if f.payload == nil {
		return nil, nil
	}
	found := *f.payload
	found.SignatureKey = signatureKey
	return &found, nil
}

func TestSignDetectRoundTrip(t *testing.T) {
	dir := t.TempDir()
	hostPath := filepath.Join(dir, "host.wav")
	signedPath := filepath.Join(dir, "signed.wav")

	opts := testOptions("correct-horse-battery-staple")
	writeHostWav(t, hostPath, opts, 2)

	signResult, err := Sign(context.Background(), hostPath, signedPath, "proj-a", "recipient-a", opts)
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}

	lookup := fakeLookup{payload: &Payload{Project: "proj-a", Recipient: "recipient-a"}}
	detectResult, err := Detect(context.Background(), signedPath, opts, lookup)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if !detectResult.Detected {
		t.Fatalf("Detect did not recover the signature; stats=%+v", detectResult.Stats)
	}
	if detectResult.Payload.SignatureKey != signResult.SignatureID {
		t.Fatalf("recovered signature %q, want %q", detectResult.Payload.SignatureKey, signResult.SignatureID)
	}
	if detectResult.Confidence <= 0 {
		t.Fatalf("Confidence = %d, want > 0", detectResult.Confidence)
	}
}

func TestDetectWrongSecretFails(t *testing.T) {
	dir := t.TempDir()
	hostPath := filepath.Join(dir, "host.wav")
	signedPath := filepath.Join(dir, "signed.wav")

	signOpts := testOptions("secret-one")
	writeHostWav(t, hostPath, signOpts, 2)

	if _, err := Sign(context.Background(), hostPath, signedPath, "proj", "rcpt", signOpts); err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}

	wrongOpts := testOptions("secret-two")
	detectResult, err := Detect(context.Background(), signedPath, wrongOpts, nil)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if detectResult.Detected {
		t.Fatal("Detect recovered a signature using the wrong secret")
	}
}

func TestDetectShortInputReturnsUndetected(t *testing.T) {
	dir := t.TempDir()
	shortPath := filepath.Join(dir, "short.wav")

	opts := testOptions("some-secret")
	// Fewer samples than one frame period requires.
	samples := make([]float64, 100*opts.Channels)
	f, err := os.Create(shortPath)
	if err != nil {
		t.Fatalf("creating short wav: %v", err)
	}
	d := &wavio.Data{SampleRate: opts.SampleRate, Channels: opts.Channels, Samples: samples}
	if err := wavio.Write(f, d); err != nil {
		t.Fatalf("writing short wav: %v", err)
	}
	f.Close()

	detectResult, err := Detect(context.Background(), shortPath, opts, nil)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if detectResult.Detected {
		t.Fatal("Detect reported detection on input shorter than one frame period")
	}
	if detectResult.Confidence != 0 {
		t.Fatalf("Confidence = %d, want 0", detectResult.Confidence)
	}
}

func TestSignRejectsFormatMismatch(t *testing.T) {
	dir := t.TempDir()
	hostPath := filepath.Join(dir, "host.wav")
	signedPath := filepath.Join(dir, "signed.wav")

	opts := testOptions("some-secret")
	writeHostWav(t, hostPath, opts, 2)

	mismatched := opts
	mismatched.SampleRate = opts.SampleRate + 1000

	_, err := Sign(context.Background(), hostPath, signedPath, "proj", "rcpt", mismatched)
	if err == nil {
		t.Fatal("Sign accepted a WAV with the wrong sample rate")
	}
	wmErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("error is not *Error: %T", err)
	}
	if wmErr.Kind != ErrFormatMismatch {
		t.Fatalf("error kind = %v, want ErrFormatMismatch", wmErr.Kind)
	}
}

func TestSignRequiresSecret(t *testing.T) {
	dir := t.TempDir()
	hostPath := filepath.Join(dir, "host.wav")
	signedPath := filepath.Join(dir, "signed.wav")

	opts := testOptions("")
	writeHostWav(t, hostPath, testOptions("placeholder"), 2)

	_, err := Sign(context.Background(), hostPath, signedPath, "proj", "rcpt", opts)
	if err == nil {
		t.Fatal("Sign accepted empty Options.Secret")
	}
	wmErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("error is not *Error: %T", err)
	}
	if wmErr.Kind != ErrInvalidConfig {
		t.Fatalf("error kind = %v, want ErrInvalidConfig", wmErr.Kind)
	}
}

func TestSignRejectsNegativeHopSize(t *testing.T) {
	dir := t.TempDir()
	hostPath := filepath.Join(dir, "host.wav")
	signedPath := filepath.Join(dir, "signed.wav")

	base := testOptions("some-secret")
	writeHostWav(t, hostPath, base, 2)

	negative := base
	negative.HopSize = -1

	_, err := Sign(context.Background(), hostPath, signedPath, "proj", "rcpt", negative)
	if err == nil {
		t.Fatal("Sign accepted a negative HopSize")
	}
	wmErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("error is not *Error: %T", err)
	}
	if wmErr.Kind != ErrInvalidConfig {
		t.Fatalf("error kind = %v, want ErrInvalidConfig", wmErr.Kind)
	}
}

func TestDetectLookupMissLeavesUndetected(t *testing.T) {
	dir := t.TempDir()
	hostPath := filepath.Join(dir, "host.wav")
	signedPath := filepath.Join(dir, "signed.wav")

	opts := testOptions("yet-another-secret")
	writeHostWav(t, hostPath, opts, 2)

	signResult, err := Sign(context.Background(), hostPath, signedPath, "proj", "rcpt", opts)
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}

	detectResult, err := Detect(context.Background(), signedPath, opts, fakeLookup{payload: nil})
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if detectResult.Detected {
		t.Fatal("Detect reported detection despite a lookup miss")
	}
	// A key was still recovered, so payload_hash must surface even
	// though the lookup itself came up empty (spec §8 scenario 5).
	wantHash := sha256.Sum256(signatureIDToKeyBytes(t, signResult.SignatureID))
	if detectResult.PayloadHash != hex.EncodeToString(wantHash[:]) {
		t.Fatalf("PayloadHash = %q, want %q", detectResult.PayloadHash, hex.EncodeToString(wantHash[:]))
	}
}

func TestResignReplacesSignatureKey(t *testing.T) {
	dir := t.TempDir()
	hostPath := filepath.Join(dir, "host.wav")
	onceSignedPath := filepath.Join(dir, "signed-once.wav")
	twiceSignedPath := filepath.Join(dir, "signed-twice.wav")

	opts := testOptions("re-sign-secret")
	writeHostWav(t, hostPath, opts, 2)

	firstResult, err := Sign(context.Background(), hostPath, onceSignedPath, "proj", "rcpt", opts)
	if err != nil {
		t.Fatalf("first Sign returned error: %v", err)
	}
	firstKeyBytes := signatureIDToKeyBytes(t, firstResult.SignatureID)

	resignOpts := opts
	resignOpts.PriorKey = firstKeyBytes
	secondResult, err := Sign(context.Background(), onceSignedPath, twiceSignedPath, "proj", "rcpt", resignOpts)
	if err != nil {
		t.Fatalf("re-sign Sign returned error: %v", err)
	}

	detectResult, err := Detect(context.Background(), twiceSignedPath, opts, nil)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	// Detected only reflects lookup success; with a nil Lookup the
	// recovered payload hash is compared directly instead.
	wantHash := sha256.Sum256(signatureIDToKeyBytes(t, secondResult.SignatureID))
	if detectResult.PayloadHash != hex.EncodeToString(wantHash[:]) {
		t.Fatalf("PayloadHash = %q, want second key's hash %q", detectResult.PayloadHash, hex.EncodeToString(wantHash[:]))
	}

	firstHash := sha256.Sum256(firstKeyBytes)
	if detectResult.PayloadHash == hex.EncodeToString(firstHash[:]) {
		t.Fatal("Detect recovered the prior key instead of the re-signed key")
	}
}

// signatureIDToKeyBytes recovers the raw 16-byte signature key from its
// canonical UUID string rendering.
func signatureIDToKeyBytes(t *testing.T, signatureID string) []byte {
	t.Helper()
	parsed, err := uuid.Parse(signatureID)
	if err != nil {
		t.Fatalf("parsing signature ID: %v", err)
	}
	b, err := parsed.MarshalBinary()
	if err != nil {
		t.Fatalf("marshaling signature ID: %v", err)
	}
	return b
}
