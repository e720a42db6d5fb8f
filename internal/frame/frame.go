// Package frame builds and parses the watermark's wire frame: a fixed
// sync preamble, a 16-bit length field, and an interleaved
// Reed-Solomon codeword carrying the 16-byte signature key.
package frame

import (
	"crypto/sha256"

	"sonicmark/internal/bitpack"
	"sonicmark/internal/rs"
	"sonicmark/pkg/wmspec"
)

// Kind identifies why Parse failed.
type Kind int

const (
	// KindNone means Parse succeeded.
	KindNone Kind = iota
	KindNoSync
	KindUnsupportedLength
	KindUncorrectableCodeword
	KindWrongPayloadSize
)

func (k Kind) String() string {
	switch k {
	case KindNoSync:
		return "NoSync"
	case KindUnsupportedLength:
		return "UnsupportedLength"
	case KindUncorrectableCodeword:
		return "UncorrectableCodeword"
	case KindWrongPayloadSize:
		return "WrongPayloadSize"
	default:
		return "None"
	}
}

// ParseResult carries the outcome of Parse.
type ParseResult struct {
	Kind         Kind
	Key          []byte
	KeyHash      [32]byte
	Corrected    bool
	RSErrors     int
	SyncIndex    int
	SyncAgree    int
}

// syncBits is the sync preamble unpacked to MSB-first bits, computed
// once at package init.
var syncBits = bitpack.BytesToBits(wmspec.SyncPreamble[:])

// Build assembles the 464-bit frame for a 16-byte signature key:
// SYNC || length(16, big-endian) || interleave(RS-encode(key, 32)).
func Build(key []byte) []byte {
	if len(key) != wmspec.PayloadBytes {
		panic("frame: key must be payload_bytes long")
	}

	codeword := rs.Encode(key, wmspec.RSParityBytes)
	bits := bitpack.BytesToBits(codeword)
	interleaved := bitpack.Interleave(bits, wmspec.InterleaveDepth)

	frame := make([]byte, 0, wmspec.FramePeriod)
	frame = append(frame, syncBits...)
	frame = append(frame, uint16Bits(wmspec.PayloadBytes)...)
	frame = append(frame, interleaved...)
	return frame
}

// uint16Bits renders n as 16 MSB-first bits.
func uint16Bits(n int) []byte {
	out := make([]byte, 16)
	for i := 0; i < 16; i++ {
		out[i] = byte((n >> (15 - i)) & 1)
	}
	return out
}

func bitsToUint16(bits []byte) int {
	var n int
	for _, b := range bits {
		n = (n << 1) | int(b)
	}
	return n
}

// findSync slides the sync preamble across v, returning the index of
// the first candidate whose Hamming agreement is at least the strong
// threshold, or else the best candidate if it clears the weak
// threshold. ok is false if neither bar is cleared.
func findSync(v []byte) (index, agree int, ok bool) {
	if len(v) < wmspec.SyncBits {
		return 0, 0, false
	}

	bestIdx, bestAgree := -1, -1
	for start := 0; start+wmspec.SyncBits <= len(v); start++ {
		agree := 0
		for i := 0; i < wmspec.SyncBits; i++ {
			if v[start+i] == syncBits[i] {
				agree++
			}
		}
		if agree >= wmspec.SyncMatchStrongNum {
			return start, agree, true
		}
		if agree > bestAgree {
			bestIdx, bestAgree = start, agree
		}
	}

	if bestIdx >= 0 && bestAgree >= wmspec.SyncMatchWeakNum {
		return bestIdx, bestAgree, true
	}
	return 0, bestAgree, false
}

// Parse searches v for a frame, deinterleaves and RS-decodes its
// codeword, and on success returns the recovered 16-byte key and its
// SHA-256 hash.
func Parse(v []byte) ParseResult {
	idx, agree, ok := findSync(v)
	if !ok {
		return ParseResult{Kind: KindNoSync, SyncIndex: idx, SyncAgree: agree}
	}

	cursor := idx + wmspec.SyncBits
	if cursor+wmspec.LengthBits > len(v) {
		return ParseResult{Kind: KindUnsupportedLength, SyncIndex: idx, SyncAgree: agree}
	}
	length := bitsToUint16(v[cursor : cursor+wmspec.LengthBits])
	cursor += wmspec.LengthBits

	if length != wmspec.PayloadBytes {
		return ParseResult{Kind: KindUnsupportedLength, SyncIndex: idx, SyncAgree: agree}
	}

	codewordBits := 8 * (length + wmspec.RSParityBytes)
	if cursor+codewordBits > len(v) {
		return ParseResult{Kind: KindWrongPayloadSize, SyncIndex: idx, SyncAgree: agree}
	}

	interleaved := v[cursor : cursor+codewordBits]
	deinterleaved := bitpack.Deinterleave(interleaved, wmspec.InterleaveDepth)
	codeword := bitpack.BitsToBytes(deinterleaved)

	result := rs.Decode(codeword, length, wmspec.RSParityBytes)
	if !result.Corrected {
		return ParseResult{
			Kind:      KindUncorrectableCodeword,
			Corrected: false,
			RSErrors:  result.Errors,
			SyncIndex: idx,
			SyncAgree: agree,
		}
	}
	if len(result.Data) != wmspec.PayloadBytes {
		return ParseResult{Kind: KindWrongPayloadSize, SyncIndex: idx, SyncAgree: agree}
	}

	return ParseResult{
		Kind:      KindNone,
		Key:       result.Data,
		KeyHash:   sha256.Sum256(result.Data),
		Corrected: true,
		RSErrors:  result.Errors,
		SyncIndex: idx,
		SyncAgree: agree,
	}
}
