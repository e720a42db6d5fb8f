// Command sonicmark-detect recovers a signature from a watermarked WAV
// and resolves it against a local reference keystore.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"sonicmark/internal/keystore"
	"sonicmark/pkg/watermark"
	"sonicmark/pkg/wmspec"
)

const (
	versionMajor = 1
	versionMinor = 0
	appName      = "sonicmark-detect"
	usage        = "Usage: sonicmark-detect -in <wav> -secret <key> [-store <path> -store-password <pw>]"
)

func main() {
	inPath := flag.String("in", "", "input WAV path")
	secret := flag.String("secret", "", "watermark secret")
	storePath := flag.String("store", "", "reference keystore path")
	storePassword := flag.String("store-password", "", "reference keystore password")
	sampleRate := flag.Int("sample-rate", wmspec.DefaultSampleRate, "expected WAV sample rate")
	channels := flag.Int("channels", wmspec.DefaultChannels, "expected WAV channel count")
	flag.Parse()

	if *inPath == "" || *secret == "" {
		fmt.Printf("\n%s %d.%d\n%s\n", appName, versionMajor, versionMinor, usage)
		os.Exit(1)
	}

	var lookup watermark.Lookup
	if *storePath != "" {
		store, err := keystore.Open(*storePath, *storePassword)
		if err != nil {
			fmt.Printf("[FAIL] opening keystore: %v\n", err)
			os.Exit(1)
		}
		lookup = store
	}

	opts := watermark.Options{
		Secret:     *secret,
		SampleRate: *sampleRate,
		Channels:   *channels,
	}

	result, err := watermark.Detect(context.Background(), *inPath, opts, lookup)
	if err != nil {
		fmt.Printf("[FAIL] detect: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("detected=%v confidence=%d\n", result.Detected, result.Confidence)
	fmt.Printf("  blocks_analyzed=%d bit_confidence=%.3f band_agreement=%.3f error_count=%d\n",
		result.Stats.BlocksAnalyzed, result.Stats.BitConfidence, result.Stats.BandAgreement, result.Stats.ErrorCount)
	if result.Detected {
		fmt.Printf("  payload_hash=%s\n  payload=%+v\n", result.PayloadHash, *result.Payload)
	}
}
