// Bench is a benchmarking tool for measuring vocabulary build time, lookup
// throughput, and binary load time.
//
// Usage:
//
//	go run ./cmd/bench -words 1000000 -type probing -load populate
//
// Flags:
//
//	-words       Number of distinct words (default: 1,000,000)
//	-type        Vocabulary type: probing or sorted (default: probing)
//	-multiplier  Probing table slots per word (default: 1.5)
//	-load        Binary load method: lazy, populate, read, populate-or-read (default: populate-or-read)
//	-out         Keep the binary file at this path instead of a temp dir
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	mrand "math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/tamirms/lmvocab"
)

// getMaxRSS returns the maximum resident set size in bytes.
// Uses getrusage(RUSAGE_SELF) which tracks peak RSS since process start.
func getMaxRSS() uint64 {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		return 0
	}
	// On macOS, MaxRss is in bytes. On Linux, it's in kilobytes.
	maxRSS := uint64(rusage.Maxrss)
	if runtime.GOOS == "linux" {
		maxRSS *= 1024
	}
	return maxRSS
}

const letters = "abcdefghijklmnopqrstuvwxyz"

// randomWord returns a lower-case word of 3 to 12 letters, suffixed with i
// so every generated word is distinct.
func randomWord(rng *mrand.Rand, i int) string {
	n := 3 + rng.IntN(10)
	b := make([]byte, n, n+8)
	for j := range b {
		b[j] = letters[rng.IntN(len(letters))]
	}
	return fmt.Sprintf("%s%d", b, i)
}

func main() {
	wordsFlag := flag.Int("words", 1_000_000, "number of distinct words")
	typeFlag := flag.String("type", "probing", "vocabulary type: probing or sorted")
	multFlag := flag.Float64("multiplier", 1.5, "probing table slots per word")
	loadFlag := flag.String("load", "populate-or-read", "binary load method")
	outFlag := flag.String("out", "", "path for the binary file (default: temp dir)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	vocabType, err := lmvocab.ParseVocabularyType(*typeFlag)
	if err != nil {
		logger.Error("bad -type", "err", err)
		os.Exit(2)
	}
	loadMethod, err := lmvocab.ParseLoadMethod(*loadFlag)
	if err != nil {
		logger.Error("bad -load", "err", err)
		os.Exit(2)
	}

	tmpDir, err := os.MkdirTemp("", "lmvocab-bench-")
	if err != nil {
		logger.Error("create temp dir", "err", err)
		os.Exit(1)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	binaryPath := *outFlag
	if binaryPath == "" {
		binaryPath = filepath.Join(tmpDir, "vocab.bin")
	}
	textPath := filepath.Join(tmpDir, "vocab.txt")

	fmt.Println("Generating words...")
	numWords := *wordsFlag
	rng := mrand.New(mrand.NewPCG(0x1234, 0x5678))
	words := make([]string, numWords)
	for i := range words {
		words[i] = randomWord(rng, i)
	}
	if err := writeSource(textPath, words); err != nil {
		logger.Error("write source", "err", err)
		os.Exit(1)
	}

	opts := []lmvocab.Option{
		lmvocab.WithVocabularyType(vocabType),
		lmvocab.WithProbingMultiplier(*multFlag),
		lmvocab.WithLoadMethod(loadMethod),
		lmvocab.WithUnknownMissing(lmvocab.Silent),
		lmvocab.WithLogger(logger),
	}

	baselineRSS := getMaxRSS()

	fmt.Println("Building vocabulary...")
	buildStart := time.Now()
	built, err := lmvocab.BuildFile(textPath, append(opts, lmvocab.WithBinaryOutput(binaryPath))...)
	if err != nil {
		logger.Error("build failed", "err", err)
		os.Exit(1)
	}
	buildDuration := time.Since(buildStart)
	_ = built.Close()

	fmt.Println("Opening binary...")
	openStart := time.Now()
	m, err := lmvocab.Open(binaryPath, opts...)
	if err != nil {
		logger.Error("open failed", "err", err)
		os.Exit(1)
	}
	openDuration := time.Since(openStart)
	defer func() { _ = m.Close() }()

	verifyStart := time.Now()
	if err := m.Verify(); err != nil {
		logger.Error("verify failed", "err", err)
		os.Exit(1)
	}
	verifyDuration := time.Since(verifyStart)

	queryOrder := rng.Perm(numWords)

	fmt.Println("Warming up lookups...")
	for i := 0; i < 10000 && numWords > 0; i++ {
		_ = m.IndexString(words[queryOrder[i%numWords]])
	}

	fmt.Println("Benchmarking lookups...")
	numQueries := 1_000_000
	var misses int
	queryStart := time.Now()
	for i := 0; i < numQueries && numWords > 0; i++ {
		if m.IndexString(words[queryOrder[i%numWords]]) == 0 {
			misses++
		}
	}
	queryDuration := time.Since(queryStart)
	if misses > 0 {
		logger.Warn("lookups missed", "misses", misses)
	}
	avgLatency := float64(queryDuration.Nanoseconds()) / float64(numQueries)

	stats := m.Stats()
	peakRSS := getMaxRSS() - baselineRSS

	fmt.Printf("\n")
	fmt.Printf("╔═════════════════════╦════════════════╗\n")
	fmt.Printf("║ Type: %-14s║ Load: %-8s ║\n", vocabType, loadMethod.Resolve())
	fmt.Printf("╠═════════════════════╬════════════════╣\n")
	fmt.Printf("║ Words               ║ %10d     ║\n", stats.Words)
	fmt.Printf("║ File size           ║ %8.1f MB    ║\n", float64(stats.FileSize)/1_000_000)
	fmt.Printf("║ Bytes per word      ║ %8.2f       ║\n", stats.BytesPerWord)
	fmt.Printf("║ Build time          ║ %6.2f sec     ║\n", buildDuration.Seconds())
	fmt.Printf("║ Build throughput    ║ %6.2f M/sec   ║\n", float64(numWords)/buildDuration.Seconds()/1_000_000)
	fmt.Printf("║ Open time           ║ %6.2f ms      ║\n", float64(openDuration.Microseconds())/1000)
	fmt.Printf("║ Verify time         ║ %6.2f ms      ║\n", float64(verifyDuration.Microseconds())/1000)
	fmt.Printf("║ Lookup latency      ║ %6.1f ns      ║\n", avgLatency)
	fmt.Printf("║ Peak RSS growth     ║ %6.1f MB      ║\n", float64(peakRSS)/1_000_000)
	fmt.Printf("╚═════════════════════╩════════════════╝\n")
}

// writeSource writes the text vocabulary: sentence markers, <unk>, then one
// "logprob word" line per word.
func writeSource(path string, words []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "-99\t%s\n-1.5\t%s\n-100\t%s\n", lmvocab.BeginSentence, lmvocab.EndSentence, lmvocab.UnknownWord)
	for _, word := range words {
		fmt.Fprintf(w, "-5.25\t%s\t-0.5\n", word)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
