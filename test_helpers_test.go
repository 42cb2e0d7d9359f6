package lmvocab

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	randv2 "math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Named seeds for deterministic reproduction.
const (
	testSeed1 = 0x1234567890ABCDEF
	testSeed2 = 0xFEDCBA9876543210
)

func newTestRNG(t testing.TB) *randv2.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return randv2.New(randv2.NewPCG(testSeed1^s1, testSeed2^s2))
}

var allTypes = []VocabularyType{ProbingType, SortedType}

var allLoadMethods = []LoadMethod{Lazy, PopulateEagerly, ReadAsHeap, PopulateOrRead}

const testLetters = "abcdefghijklmnopqrstuvwxyz"

// generateWords creates n distinct pseudo-random lower-case words.
func generateWords(rng *randv2.Rand, n int) []string {
	words := make([]string, n)
	for i := range words {
		b := make([]byte, 2+rng.IntN(8))
		for j := range b {
			b[j] = testLetters[rng.IntN(len(testLetters))]
		}
		// The suffix keeps words distinct.
		words[i] = fmt.Sprintf("%s%d", b, i)
	}
	return words
}

// pair is one (identity, word) enumeration event.
type pair struct {
	Index WordIndex
	Word  string
}

// collector is an Enumerator that records every event in order.
type collector struct {
	pairs []pair
}

func (c *collector) Add(index WordIndex, word []byte) {
	c.pairs = append(c.pairs, pair{Index: index, Word: string(word)})
}

// byIndex returns the recorded words keyed by identity.
func (c *collector) byIndex() map[WordIndex]string {
	m := make(map[WordIndex]string, len(c.pairs))
	for _, p := range c.pairs {
		m[p.Index] = p.Word
	}
	return m
}

// setupVocabulary returns a vocabulary of type typ over a fresh zeroed
// region sized for entries words.
func setupVocabulary(t *testing.T, typ VocabularyType, entries int) Vocabulary {
	t.Helper()
	v, err := NewVocabulary(typ)
	require.NoError(t, err)
	size, err := RequiredSize(typ, entries, 1.5)
	require.NoError(t, err)
	require.NoError(t, v.SetupMemory(make([]byte, size), entries, 1.5))
	return v
}

// sourceText renders a text vocabulary with sentence markers, <unk> and one
// "logprob word backoff" line per word. Word i gets logprob -(i+1)/8.
func sourceText(words []string) string {
	var sb strings.Builder
	sb.WriteString("-99\t<s>\t-0.25\n")
	sb.WriteString("-1.5\t</s>\n")
	sb.WriteString("-100\t<unk>\n")
	for i, w := range words {
		fmt.Fprintf(&sb, "%g\t%s\t%g\n", wantProb(i), w, wantBackoff(i))
	}
	return sb.String()
}

func wantProb(i int) float32    { return -float32(i+1) / 8 }
func wantBackoff(i int) float32 { return -float32(i%5) / 4 }

// writeText writes content to a temp file and returns its path.
func writeText(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// buildBinary builds words into a binary file of type typ and returns its
// path.
func buildBinary(t *testing.T, typ VocabularyType, words []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vocab.bin")
	m, err := BuildFile(writeText(t, sourceText(words)),
		WithVocabularyType(typ), WithBinaryOutput(path))
	require.NoError(t, err)
	require.NoError(t, m.Close())
	return path
}
