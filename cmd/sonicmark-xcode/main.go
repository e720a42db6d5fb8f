// Command sonicmark-xcode demonstrates the watermark's claimed
// survivability by transcoding a signed WAV through Opus and back,
// then re-running Detect against the round-tripped audio.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/go-audio/audio"

	"sonicmark/internal/wavio"
	"sonicmark/pkg/audioengine"
	"sonicmark/pkg/watermark"
)

const (
	appName = "sonicmark-xcode"
	usage   = "Usage: sonicmark-xcode -in <signed.wav> -out <roundtripped.wav> -secret <key> [-opus-rate 48000]"
)

func main() {
	inPath := flag.String("in", "", "signed WAV to round-trip")
	outPath := flag.String("out", "", "path to write the round-tripped WAV")
	secret := flag.String("secret", "", "watermark secret, to re-detect after round trip")
	opusRate := flag.Int("opus-rate", 48000, "sample rate to transcode through Opus at")
	flag.Parse()

	if *inPath == "" || *outPath == "" {
		fmt.Printf("\n%s\n%s\n", appName, usage)
		os.Exit(1)
	}

	in, err := os.Open(*inPath)
	if err != nil {
		fmt.Printf("[FAIL] opening input: %v\n", err)
		os.Exit(1)
	}
	wav, err := wavio.Read(in)
	in.Close()
	if err != nil {
		fmt.Printf("[FAIL] reading input WAV: %v\n", err)
		os.Exit(1)
	}

	intBuf := audioengine.ToIntBuffer(wav.Samples, *opusRate, wav.Channels)

	resultChan := make(chan audioengine.EncoderResult, 64)
	go func() {
		if _, err := audioengine.StreamEncode(intBuf, resultChan); err != nil {
			fmt.Printf("[FAIL] opus encode: %v\n", err)
		}
	}()

	decoder, err := audioengine.NewStreamDecoder(*opusRate, wav.Channels)
	if err != nil {
		fmt.Printf("[FAIL] building opus decoder: %v\n", err)
		os.Exit(1)
	}
	pcm, err := decoder.DecodeAll(resultChan)
	if err != nil {
		fmt.Printf("[FAIL] opus decode: %v\n", err)
		os.Exit(1)
	}

	decodedInts := make([]int, len(pcm))
	for i, v := range pcm {
		decodedInts[i] = int(v)
	}
	roundTripped := &audio.IntBuffer{
		Data:   decodedInts,
		Format: &audio.Format{NumChannels: wav.Channels, SampleRate: *opusRate},
	}
	samples := audioengine.FromIntBuffer(roundTripped)

	out := &wavio.Data{SampleRate: *opusRate, Channels: wav.Channels, Samples: samples}
	outFile, err := os.Create(*outPath)
	if err != nil {
		fmt.Printf("[FAIL] creating output: %v\n", err)
		os.Exit(1)
	}
	defer outFile.Close()
	if err := wavio.Write(outFile, out); err != nil {
		fmt.Printf("[FAIL] writing output WAV: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("[OK] round-tripped %s -> %s via Opus @ %dHz\n", *inPath, *outPath, *opusRate)

	if *secret != "" {
		opts := watermark.Options{Secret: *secret, SampleRate: *opusRate, Channels: wav.Channels}
		detectResult, err := watermark.Detect(context.Background(), *outPath, opts, nil)
		if err != nil {
			fmt.Printf("[FAIL] re-detect: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("  re-detect: confidence=%d blocks_analyzed=%d error_count=%d\n",
			detectResult.Confidence, detectResult.Stats.BlocksAnalyzed, detectResult.Stats.ErrorCount)
	}
}
