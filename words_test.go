package lmvocab

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vocaberrors "github.com/tamirms/lmvocab/errors"
)

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }

func TestReadWords(t *testing.T) {
	c := &collector{}
	bound, err := readWords(strings.NewReader("the\x00cat\x00\x00sat\x00"), c)
	require.NoError(t, err)
	assert.Equal(t, WordIndex(5), bound)
	assert.Equal(t, []pair{{1, "the"}, {2, "cat"}, {3, ""}, {4, "sat"}}, c.pairs)
}

func TestReadWordsEmpty(t *testing.T) {
	c := &collector{}
	bound, err := readWords(strings.NewReader(""), c)
	require.NoError(t, err)
	assert.Equal(t, WordIndex(1), bound)
	assert.Empty(t, c.pairs)
}

func TestReadWordsSpansChunks(t *testing.T) {
	long := strings.Repeat("x", 3*wordReadChunk+17)
	src := "a\x00" + long + "\x00b\x00"

	for name, r := range map[string]io.Reader{
		"Whole":   strings.NewReader(src),
		"OneByte": iotest.OneByteReader(strings.NewReader(src)),
		"Half":    iotest.HalfReader(strings.NewReader(src)),
	} {
		t.Run(name, func(t *testing.T) {
			c := &collector{}
			bound, err := readWords(r, c)
			require.NoError(t, err)
			assert.Equal(t, WordIndex(4), bound)
			require.Len(t, c.pairs, 3)
			assert.Equal(t, "a", c.pairs[0].Word)
			assert.Equal(t, long, c.pairs[1].Word)
			assert.Equal(t, "b", c.pairs[2].Word)
		})
	}
}

func TestReadWordsMissingTerminator(t *testing.T) {
	for _, src := range []string{"the\x00cat", strings.Repeat("y", wordReadChunk+5)} {
		_, err := readWords(strings.NewReader(src), &collector{})
		assert.ErrorIs(t, err, vocaberrors.ErrMissingTerminator)
	}
}

func TestReadWordsIOError(t *testing.T) {
	boom := errors.New("disk on fire")
	_, err := readWords(iotest.ErrReader(boom), &collector{})
	assert.ErrorIs(t, err, vocaberrors.ErrIO)
	assert.ErrorIs(t, err, boom)
}

func TestWordStreamWriter(t *testing.T) {
	inner := &collector{}
	w := newWordStreamWriter(inner)
	w.Add(0, []byte("<unk>"))
	w.Add(1, []byte("the"))
	w.Add(2, []byte("cat"))
	require.NoError(t, w.Err())

	assert.Equal(t, []byte("the\x00cat\x00"), w.Bytes())
	assert.Equal(t, 2, w.Words())
	assert.Len(t, inner.pairs, 3, "inner sink sees the <unk> seed too")

	c := &collector{}
	bound, err := readWords(bytes.NewReader(w.Bytes()), c)
	require.NoError(t, err)
	assert.Equal(t, WordIndex(3), bound)
	assert.Equal(t, []pair{{1, "the"}, {2, "cat"}}, c.pairs)

	w.Release()
	assert.Nil(t, w.Bytes())
}

func TestWordStreamWriterGrows(t *testing.T) {
	rng := newTestRNG(t)
	words := generateWords(rng, 5000)
	w := newWordStreamWriter(nil)
	var want bytes.Buffer
	for i, word := range words {
		w.Add(WordIndex(i+1), []byte(word))
		want.WriteString(word)
		want.WriteByte(0)
	}
	require.NoError(t, w.Err())
	assert.Equal(t, want.Bytes(), w.Bytes())
}

func TestWordStreamWriterOutOfOrder(t *testing.T) {
	w := newWordStreamWriter(nil)
	w.Add(1, []byte("a"))
	w.Add(3, []byte("c"))
	assert.ErrorIs(t, w.Err(), vocaberrors.ErrCorruptedFile)
	assert.Equal(t, 1, w.Words())
}

func TestWordStreamWriterEmpty(t *testing.T) {
	w := newWordStreamWriter(nil)
	assert.Nil(t, w.Bytes())
	assert.Equal(t, 0, w.Words())
}
