package lmvocab

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vocaberrors "github.com/tamirms/lmvocab/errors"
	"github.com/tamirms/lmvocab/internal/layout"
)

// buildInMemory builds words without writing a file, for comparison with a
// loaded model.
func buildInMemory(t *testing.T, typ VocabularyType, words []string) *Model {
	t.Helper()
	m, err := Build(strings.NewReader(sourceText(words)), len(words)+3, WithVocabularyType(typ))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestRoundTrip(t *testing.T) {
	for _, typ := range allTypes {
		t.Run(typ.String(), func(t *testing.T) {
			rng := newTestRNG(t)
			words := generateWords(rng, 3000)
			built := buildInMemory(t, typ, words)
			path := buildBinary(t, typ, words)

			for _, method := range allLoadMethods {
				t.Run(method.String(), func(t *testing.T) {
					c := &collector{}
					m, err := Open(path, WithLoadMethod(method), WithEnumerator(c))
					require.NoError(t, err)
					defer m.Close()
					require.NoError(t, m.Verify())

					assert.Equal(t, typ, m.Vocabulary().Type())
					assert.Equal(t, built.Bound(), m.Bound())
					assert.Equal(t, built.Vocabulary().BeginSentence(), m.Vocabulary().BeginSentence())
					assert.Equal(t, built.Vocabulary().EndSentence(), m.Vocabulary().EndSentence())
					assert.Equal(t, built.Weights().Bytes(), m.Weights().Bytes())

					for i, w := range words {
						id := m.IndexString(w)
						require.Equal(t, built.IndexString(w), id, w)
						assert.Equal(t, ProbBackoff{Prob: wantProb(i), Backoff: wantBackoff(i)}, m.Weights().At(id))
					}
					assert.Zero(t, m.IndexString("definitely-not-a-word"))

					require.Len(t, c.pairs, int(m.Bound()))
					assert.Equal(t, pair{0, UnknownWord}, c.pairs[0])
					for i, p := range c.pairs[1:] {
						require.Equal(t, WordIndex(i+1), p.Index)
						require.Equal(t, p.Index, m.IndexString(p.Word), p.Word)
					}
				})
			}
		})
	}
}

func TestOpenWithoutEnumerator(t *testing.T) {
	rng := newTestRNG(t)
	words := generateWords(rng, 200)
	path := buildBinary(t, ProbingType, words)

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()
	for _, w := range words {
		assert.NotZero(t, m.IndexString(w))
	}
}

func TestOpenFileCallerOwnsFile(t *testing.T) {
	path := buildBinary(t, SortedType, []string{"a", "b"})
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	m, err := OpenFile(f, WithLoadMethod(Lazy))
	require.NoError(t, err)
	require.NoError(t, m.Verify())
	require.NoError(t, m.Close())

	_, err = f.Stat()
	assert.NoError(t, err, "Close must not close a caller-owned file")
}

func TestWriteBinaryFromOpenedModel(t *testing.T) {
	for _, typ := range allTypes {
		t.Run(typ.String(), func(t *testing.T) {
			rng := newTestRNG(t)
			path := buildBinary(t, typ, generateWords(rng, 500))
			m, err := Open(path, WithLoadMethod(ReadAsHeap))
			require.NoError(t, err)
			defer m.Close()

			copyPath := filepath.Join(t.TempDir(), "copy.bin")
			require.NoError(t, m.WriteBinary(copyPath))

			want, err := os.ReadFile(path)
			require.NoError(t, err)
			got, err := os.ReadFile(copyPath)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestBinaryOutputBadPath(t *testing.T) {
	_, err := Build(strings.NewReader(markers), 2,
		WithUnknownMissing(Silent), WithBinaryOutput("/nonexistent/dir/vocab.bin"))
	assert.ErrorIs(t, err, vocaberrors.ErrIO)
}

func TestStats(t *testing.T) {
	rng := newTestRNG(t)
	words := generateWords(rng, 100)
	path := buildBinary(t, ProbingType, words)
	info, err := os.Stat(path)
	require.NoError(t, err)

	m, err := Open(path, WithLoadMethod(ReadAsHeap))
	require.NoError(t, err)
	defer m.Close()

	s := m.Stats()
	assert.Equal(t, ProbingType, s.Type)
	assert.Equal(t, len(words)+2, s.Words)
	assert.Equal(t, uint64(info.Size()), s.FileSize)
	assert.Equal(t, uint64(WeightsSize(len(words)+3)), s.WeightsBytes)
	assert.Equal(t, uint64(layout.ProbingSize(len(words)+3, 1.5)), s.VocabBytes)
	assert.Equal(t, "heap/read", s.Origin)
	assert.Greater(t, s.BytesPerWord, 0.0)

	built := buildInMemory(t, ProbingType, words)
	assert.Equal(t, "mapped", built.Stats().Origin)
	assert.Equal(t, s.FileSize, built.Stats().FileSize)
}

func TestCloseIdempotent(t *testing.T) {
	path := buildBinary(t, ProbingType, []string{"x"})
	m, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Verify(), vocaberrors.ErrModelClosed)
	assert.ErrorIs(t, m.WriteBinary(filepath.Join(t.TempDir(), "x.bin")), vocaberrors.ErrModelClosed)
}

func TestBuiltModelVerifies(t *testing.T) {
	m := buildInMemory(t, SortedType, []string{"a"})
	assert.NoError(t, m.Verify())
}

func TestOpenSentenceMarkerPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nomarkers.bin")
	m, err := Build(strings.NewReader("<unk>\nword\n"), 1,
		WithSentenceMarkerMissing(Silent), WithBinaryOutput(path))
	require.NoError(t, err)
	require.NoError(t, m.Close())

	_, err = Open(path)
	assert.ErrorIs(t, err, vocaberrors.ErrMissingSpecialWord)

	m, err = Open(path, WithSentenceMarkerMissing(Silent))
	require.NoError(t, err)
	defer m.Close()
	assert.NotZero(t, m.IndexString("word"))
}

func TestConcurrentLookups(t *testing.T) {
	for _, typ := range allTypes {
		t.Run(typ.String(), func(t *testing.T) {
			rng := newTestRNG(t)
			words := generateWords(rng, 2000)
			path := buildBinary(t, typ, words)
			m, err := Open(path)
			require.NoError(t, err)
			defer m.Close()

			want := make([]WordIndex, len(words))
			for i, w := range words {
				want[i] = m.IndexString(w)
			}

			var wg sync.WaitGroup
			for g := 0; g < 8; g++ {
				wg.Add(1)
				go func(offset int) {
					defer wg.Done()
					for i := range words {
						j := (i + offset*97) % len(words)
						if got := m.IndexString(words[j]); got != want[j] {
							t.Errorf("goroutine %d: %q got %d, want %d", offset, words[j], got, want[j])
							return
						}
						_ = m.Weights().At(want[j])
					}
				}(g)
			}
			wg.Wait()
		})
	}
}

// =============================================================================
// Corruption detection
// =============================================================================

// corrupt writes a copy of the file at path with mutate applied.
func corrupt(t *testing.T, path string, mutate func([]byte) []byte) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := filepath.Join(t.TempDir(), "corrupt.bin")
	require.NoError(t, os.WriteFile(out, mutate(append([]byte(nil), data...)), 0644))
	return out
}

func TestCorruptionDetection(t *testing.T) {
	rng := newTestRNG(t)
	words := generateWords(rng, 400)
	path := buildBinary(t, ProbingType, words)

	m, err := Open(path)
	require.NoError(t, err)
	stats := *m.Stats()
	require.NoError(t, m.Close())
	weightsOffset := int(headerSize + stats.VocabBytes)
	wordsOffset := weightsOffset + int(stats.WeightsBytes)

	verifyFails := func(t *testing.T, p string) {
		t.Helper()
		m, err := Open(p)
		require.NoError(t, err)
		defer m.Close()
		assert.ErrorIs(t, m.Verify(), vocaberrors.ErrChecksumFailed)
	}

	t.Run("Weights", func(t *testing.T) {
		verifyFails(t, corrupt(t, path, func(b []byte) []byte {
			b[weightsOffset+3] ^= 0x01
			return b
		}))
	})

	t.Run("WordStream", func(t *testing.T) {
		verifyFails(t, corrupt(t, path, func(b []byte) []byte {
			b[wordsOffset] ^= 0x20
			return b
		}))
	})

	t.Run("Footer", func(t *testing.T) {
		verifyFails(t, corrupt(t, path, func(b []byte) []byte {
			b[len(b)-footerSize+8] ^= 0xFF
			return b
		}))
	})

	openFails := func(t *testing.T, mutate func([]byte) []byte, target error) {
		t.Helper()
		_, err := Open(corrupt(t, path, mutate))
		assert.ErrorIs(t, err, target)
	}

	t.Run("Magic", func(t *testing.T) {
		openFails(t, func(b []byte) []byte { b[0] ^= 0xFF; return b }, vocaberrors.ErrInvalidMagic)
	})

	t.Run("ContainerVersion", func(t *testing.T) {
		openFails(t, func(b []byte) []byte {
			binary.LittleEndian.PutUint16(b[4:6], version+1)
			return b
		}, vocaberrors.ErrInvalidVersion)
	})

	t.Run("VocabularyType", func(t *testing.T) {
		openFails(t, func(b []byte) []byte {
			binary.LittleEndian.PutUint16(b[6:8], 7)
			return b
		}, vocaberrors.ErrUnknownType)
	})

	t.Run("EntryCount", func(t *testing.T) {
		openFails(t, func(b []byte) []byte {
			binary.LittleEndian.PutUint64(b[8:16], binary.LittleEndian.Uint64(b[8:16])+100)
			return b
		}, vocaberrors.ErrCorruptedFile)
	})

	t.Run("Bound", func(t *testing.T) {
		openFails(t, func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[24:28], 0)
			return b
		}, vocaberrors.ErrCorruptedFile)
	})

	t.Run("ProbingVersion", func(t *testing.T) {
		openFails(t, func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[headerSize:headerSize+4], layout.ProbingVersion+1)
			return b
		}, vocaberrors.ErrFormatVersion)
	})

	t.Run("ProbingBoundDisagrees", func(t *testing.T) {
		openFails(t, func(b []byte) []byte {
			bound := binary.LittleEndian.Uint32(b[headerSize+4 : headerSize+8])
			binary.LittleEndian.PutUint32(b[headerSize+4:headerSize+8], bound-1)
			return b
		}, vocaberrors.ErrCorruptedFile)
	})

	t.Run("Truncated", func(t *testing.T) {
		openFails(t, func(b []byte) []byte { return b[:len(b)-1] }, vocaberrors.ErrTruncatedFile)
	})

	t.Run("TrailingBytes", func(t *testing.T) {
		openFails(t, func(b []byte) []byte { return append(b, 0) }, vocaberrors.ErrCorruptedFile)
	})

	t.Run("TooShort", func(t *testing.T) {
		openFails(t, func(b []byte) []byte { return b[:headerSize] }, vocaberrors.ErrTruncatedFile)
	})

	t.Run("WordStreamShort", func(t *testing.T) {
		p := corrupt(t, path, func(b []byte) []byte {
			// Turn the last terminator into a letter so one word goes missing.
			b[len(b)-footerSize-1] = 'z'
			return b
		})
		_, err := Open(p, WithEnumerator(&collector{}))
		assert.ErrorIs(t, err, vocaberrors.ErrMissingTerminator)
	})
}

func TestCorruptSortedCount(t *testing.T) {
	path := buildBinary(t, SortedType, []string{"a", "b", "c"})
	p := corrupt(t, path, func(b []byte) []byte {
		binary.LittleEndian.PutUint64(b[headerSize:headerSize+8], 1)
		return b
	})
	_, err := Open(p)
	assert.ErrorIs(t, err, vocaberrors.ErrCorruptedFile)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.bin"))
	assert.ErrorIs(t, err, vocaberrors.ErrIO)
}
