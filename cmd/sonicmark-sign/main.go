// Command sonicmark-sign embeds a secret-keyed signature into a WAV
// file, either for a single input given via flags or for a batch of
// jobs described by a JSON file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"sonicmark/pkg/watermark"
	"sonicmark/pkg/wmspec"
)

const (
	versionMajor = 1
	versionMinor = 0
	appName      = "sonicmark-sign"
	usage        = "Usage: sonicmark-sign -in <wav> -out <wav> -secret <key> -project <name> -recipient <name>"
	batchUsage   = "Usage: sonicmark-sign -batch <jobs.json> -secret <key> [-workers N]"
)

// batchJob is one line of the batch JSON job list: an input/output WAV
// pair plus the metadata Sign wants attached to it.
type batchJob struct {
	Input     string `json:"input"`
	Output    string `json:"output"`
	Project   string `json:"project"`
	Recipient string `json:"recipient"`
}

func main() {
	inPath := flag.String("in", "", "input WAV path")
	outPath := flag.String("out", "", "output WAV path")
	project := flag.String("project", "", "project label")
	recipient := flag.String("recipient", "", "recipient label")
	secret := flag.String("secret", "", "watermark secret")
	batchPath := flag.String("batch", "", "path to a JSON job list for batch signing")
	workers := flag.Int("workers", 2, "worker count for -batch mode")
	sampleRate := flag.Int("sample-rate", wmspec.DefaultSampleRate, "expected WAV sample rate")
	channels := flag.Int("channels", wmspec.DefaultChannels, "expected WAV channel count")
	embedStrength := flag.Float64("embed-strength", wmspec.DefaultEmbedStrength, "base PN gain")
	flag.Parse()

	if *batchPath != "" {
		runBatch(*batchPath, *secret, *workers, *sampleRate, *channels, *embedStrength)
		return
	}

	if *secret == "" || *inPath == "" || *outPath == "" {
		interviewSign(inPath, outPath, project, recipient, secret)
	}

	if *secret == "" || *inPath == "" || *outPath == "" {
		fmt.Printf("\n%s %d.%d\n%s\n%s\n", appName, versionMajor, versionMinor, usage, batchUsage)
		os.Exit(1)
	}

	opts := watermark.Options{
		Secret:        *secret,
		SampleRate:    *sampleRate,
		Channels:      *channels,
		EmbedStrength: *embedStrength,
	}

	result, err := watermark.Sign(context.Background(), *inPath, *outPath, *project, *recipient, opts)
	if err != nil {
		fmt.Printf("[FAIL] sign: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("[OK] signed %s\n  signature_id=%s\n  payload_hash=%s\n", result.OutputPath, result.SignatureID, result.PayloadHash)
}

func interviewSign(inPath, outPath, project, recipient, secret *string) {
	rl, err := readline.NewEx(&readline.Config{Prompt: ">> "})
	if err != nil {
		return
	}
	defer rl.Close()

	fmt.Printf("\n%s %d.%d — interactive sign\n", appName, versionMajor, versionMinor)
	if *inPath == "" {
		*inPath = ask(rl, "1. Input WAV path", "input.wav")
	}
	if *outPath == "" {
		*outPath = ask(rl, "2. Output WAV path", "signed.wav")
	}
	if *project == "" {
		*project = ask(rl, "3. Project label", "")
	}
	if *recipient == "" {
		*recipient = ask(rl, "4. Recipient label", "")
	}
	if *secret == "" {
		*secret = ask(rl, "5. Secret", "")
	}
}

func ask(rl *readline.Instance, prompt, def string) string {
	rl.SetPrompt(fmt.Sprintf("%s [%s]: ", prompt, def))
	line, _ := rl.Readline()
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}

func runBatch(jobsPath, secret string, workers, sampleRate, channels int, embedStrength float64) {
	data, err := os.ReadFile(jobsPath)
	if err != nil {
		fmt.Printf("[FAIL] reading job list: %v\n", err)
		os.Exit(1)
	}

	var jobs []batchJob
	if err := json.Unmarshal(data, &jobs); err != nil {
		fmt.Printf("[FAIL] parsing job list: %v\n", err)
		os.Exit(1)
	}

	opts := watermark.Options{
		Secret:        secret,
		SampleRate:    sampleRate,
		Channels:      channels,
		EmbedStrength: embedStrength,
	}

	jobChan := make(chan batchJob, len(jobs))
	for _, j := range jobs {
		jobChan <- j
	}
	close(jobChan)

	var wg sync.WaitGroup
	var mu sync.Mutex
	failures := 0

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := range jobChan {
				result, err := watermark.Sign(context.Background(), j.Input, j.Output, j.Project, j.Recipient, opts)
				if err != nil {
					mu.Lock()
					failures++
					mu.Unlock()
					fmt.Printf("[FAIL worker %d] %s: %v\n", id, j.Input, err)
					continue
				}
				fmt.Printf("[OK worker %d] %s -> %s (signature_id=%s)\n", id, j.Input, result.OutputPath, result.SignatureID)
			}
		}(w)
	}
	wg.Wait()

	fmt.Printf("\nbatch complete: %d jobs, %d failures\n", len(jobs), failures)
	if failures > 0 {
		os.Exit(1)
	}
}
