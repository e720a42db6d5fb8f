// Command sonicmark-specgram renders a PNG spectrogram of a WAV file
// for visual inspection. It is a read-only diagnostic: it never
// participates in the embed/extract path and implements no
// psychoacoustic masking.
package main

import (
	"flag"
	"fmt"
	"os"

	"sonicmark/internal/codec"
	"sonicmark/internal/wavio"
)

const usage = "Usage: sonicmark-specgram -in <wav> -out <png>"

func main() {
	inPath := flag.String("in", "", "input WAV path")
	outPath := flag.String("out", "spectrogram.png", "output PNG path")
	flag.Parse()

	if *inPath == "" {
		fmt.Println(usage)
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
		fmt.Printf("[FAIL] reading WAV: %v\n", err)
		os.Exit(1)
	}

	mono := make([]float64, len(wav.Samples)/wav.Channels)
	for i := range mono {
		var sum float64
		for c := 0; c < wav.Channels; c++ {
			sum += wav.Samples[i*wav.Channels+c]
		}
		mono[i] = sum / float64(wav.Channels)
	}

	png, err := codec.GenerateSpectrogram(mono)
	if err != nil {
		fmt.Printf("[FAIL] rendering spectrogram: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*outPath, png, 0o644); err != nil {
		fmt.Printf("[FAIL] writing PNG: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("[OK] wrote %s\n", *outPath)
}
