package lmvocab

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	vocaberrors "github.com/tamirms/lmvocab/errors"
	"github.com/tamirms/lmvocab/internal/region"
)

const (
	// wordReadChunk is the read size for word streams.
	wordReadChunk = 16384

	// minWordBuffer is the first allocation of a word stream writer.
	minWordBuffer = 4096
)

// readWords streams NUL-terminated words from r into sink, assigning
// identities from 1 (identity 0 is never stored). It returns the resulting
// bound. A word may span any number of read chunks.
func readWords(r io.Reader, sink Enumerator) (WordIndex, error) {
	br := bufio.NewReaderSize(r, wordReadChunk)
	index := WordIndex(1)
	var spill []byte
	for {
		chunk, err := br.ReadSlice(0)
		switch {
		case err == nil:
			word := chunk[:len(chunk)-1]
			if len(spill) > 0 {
				spill = append(spill, word...)
				word = spill
			}
			sink.Add(index, word)
			index++
			spill = spill[:0]
		case errors.Is(err, bufio.ErrBufferFull):
			spill = append(spill, chunk...)
		case errors.Is(err, io.EOF):
			if len(chunk) > 0 || len(spill) > 0 {
				return index, fmt.Errorf("%w: after identity %d", vocaberrors.ErrMissingTerminator, index-1)
			}
			return index, nil
		default:
			return index, fmt.Errorf("%w: reading vocabulary words: %w", vocaberrors.ErrIO, err)
		}
	}
}

// wordStreamWriter is an Enumerator that forwards to an inner sink and
// records the word stream for the binary file. Words must arrive in identity
// order; the (0, <unk>) seed is forwarded but not recorded.
type wordStreamWriter struct {
	inner Enumerator
	buf   *region.Region
	n     int
	next  WordIndex
	err   error
}

func newWordStreamWriter(inner Enumerator) *wordStreamWriter {
	return &wordStreamWriter{
		inner: inner,
		buf:   region.New(nil, region.None),
		next:  1,
	}
}

// Add implements Enumerator.
func (w *wordStreamWriter) Add(index WordIndex, word []byte) {
	if w.inner != nil {
		w.inner.Add(index, word)
	}
	if index == 0 || w.err != nil {
		return
	}
	if index != w.next {
		w.err = fmt.Errorf("%w: word stream got identity %d, want %d", vocaberrors.ErrCorruptedFile, index, w.next)
		return
	}
	need := w.n + len(word) + 1
	if need > w.buf.Size() {
		size := max(need, 2*w.buf.Size(), minWordBuffer)
		if err := w.buf.Reallocate(size); err != nil {
			w.err = err
			return
		}
	}
	data := w.buf.Bytes()
	copy(data[w.n:], word)
	data[need-1] = 0
	w.n = need
	w.next++
}

// Bytes returns the recorded stream.
func (w *wordStreamWriter) Bytes() []byte {
	if w.n == 0 {
		return nil
	}
	return w.buf.Bytes()[:w.n]
}

// Words returns the number of words recorded.
func (w *wordStreamWriter) Words() int { return int(w.next - 1) }

// Err returns the first error seen while recording.
func (w *wordStreamWriter) Err() error { return w.err }

// Release drops the recorded stream.
func (w *wordStreamWriter) Release() {
	w.buf.Release()
	w.n = 0
}
