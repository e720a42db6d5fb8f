package frame

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"sonicmark/pkg/wmspec"
)

func testKey() []byte {
	key := make([]byte, wmspec.PayloadBytes)
	for i := range key {
		key[i] = byte(i*13 + 1)
	}
	return key
}

func TestBuildLength(t *testing.T) {
	frame := Build(testKey())
	if len(frame) != wmspec.FramePeriod {
		t.Fatalf("len(frame) = %d, want %d", len(frame), wmspec.FramePeriod)
	}
}

func TestBuildParseRoundTrip(t *testing.T) {
	key := testKey()
	frame := Build(key)

	result := Parse(frame)
	if result.Kind != KindNone {
		t.Fatalf("Parse returned kind %v, want KindNone", result.Kind)
	}
	if !bytes.Equal(result.Key, key) {
		t.Fatalf("recovered key = %v, want %v", result.Key, key)
	}
	want := sha256.Sum256(key)
	if result.KeyHash != want {
		t.Fatal("recovered key hash does not match sha256(key)")
	}
}

func TestParseToleratesBitErrorsWithinRSCapacity(t *testing.T) {
	key := testKey()
	frame := Build(key)

	corrupted := append([]byte(nil), frame...)
	// Flip a handful of bits inside the codeword region; RS(48,16) can
	// correct up to 16 byte errors, comfortably more than this.
	for _, idx := range []int{100, 150, 200, 250, 300} {
		corrupted[idx] ^= 1
	}

	result := Parse(corrupted)
	if result.Kind != KindNone {
		t.Fatalf("Parse returned kind %v, want KindNone", result.Kind)
	}
	if !bytes.Equal(result.Key, key) {
		t.Fatalf("recovered key = %v, want %v", result.Key, key)
	}
}

func TestParseNoSync(t *testing.T) {
	v := make([]byte, wmspec.FramePeriod)
	result := Parse(v)
	if result.Kind != KindNoSync {
		t.Fatalf("Parse returned kind %v, want KindNoSync", result.Kind)
	}
}

func TestParseFindsSyncAtOffset(t *testing.T) {
	key := testKey()
	frame := Build(key)

	padded := make([]byte, 0, len(frame)+37)
	padded = append(padded, make([]byte, 37)...)
	padded = append(padded, frame...)

	result := Parse(padded)
	if result.Kind != KindNone {
		t.Fatalf("Parse returned kind %v, want KindNone", result.Kind)
	}
	if result.SyncIndex != 37 {
		t.Fatalf("SyncIndex = %d, want 37", result.SyncIndex)
	}
}
