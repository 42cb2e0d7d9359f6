package lmvocab

import (
	"errors"
	"fmt"
	"io"
	"math"

	vocaberrors "github.com/tamirms/lmvocab/errors"
	"github.com/tamirms/lmvocab/internal/layout"
	"github.com/tamirms/lmvocab/internal/probing"
)

// ProbingVocabulary assigns identities in insert order and stores
// (hash, identity) pairs in an open-addressing table, so lookups are O(1)
// expected with no finalize-time reordering.
type ProbingVocabulary struct {
	specials

	header   []byte
	table    *probing.Table
	capacity int
	bound    WordIndex

	enumerate Enumerator
	finished  bool
}

// Type returns ProbingType.
func (v *ProbingVocabulary) Type() VocabularyType { return ProbingType }

// SetupMemory attaches the vocabulary to mem, which must hold at least
// layout.ProbingSize(entries, multiplier) bytes. The table geometry derives
// from entries and multiplier, so a binary load must pass the values used to
// build it.
func (v *ProbingVocabulary) SetupMemory(mem []byte, entries int, multiplier float64) error {
	need := layout.ProbingSize(entries, multiplier)
	if len(mem) < need {
		return fmt.Errorf("%w: probing region of %d bytes, need %d", vocaberrors.ErrTruncatedFile, len(mem), need)
	}
	tableMem, err := layout.ProbingTable(mem[:need])
	if err != nil {
		return err
	}
	table, err := probing.New(tableMem)
	if err != nil {
		return err
	}
	*v = ProbingVocabulary{
		header:   mem[:layout.ProbingHeaderSize],
		table:    table,
		capacity: entries,
		bound:    1,
	}
	return nil
}

// ConfigureEnumerate registers sink. Words are reported as they are inserted.
func (v *ProbingVocabulary) ConfigureEnumerate(sink Enumerator, _ int) {
	v.enumerate = sink
	seedUnknown(sink)
}

// Insert assigns word the next identity.
func (v *ProbingVocabulary) Insert(word []byte) (WordIndex, error) {
	if v.table == nil {
		return 0, vocaberrors.ErrNotSetup
	}
	if v.finished {
		return 0, vocaberrors.ErrFinished
	}
	h := HashWord(word)
	// Keep unknown out of the table.
	if isUnknown(h) {
		v.sawUnknown = true
		return 0, nil
	}
	if int(v.bound) > v.capacity || v.bound == math.MaxUint32 {
		return 0, fmt.Errorf("%w: capacity %d", vocaberrors.ErrTooManyWords, v.capacity)
	}

	if err := v.table.Insert(h, uint32(v.bound)); err != nil {
		switch {
		case errors.Is(err, vocaberrors.ErrDuplicateKey):
			return 0, fmt.Errorf("%w: %q", vocaberrors.ErrDuplicateWord, word)
		case errors.Is(err, vocaberrors.ErrTableFull):
			return 0, fmt.Errorf("%w: %w", vocaberrors.ErrTooManyWords, err)
		}
		return 0, err
	}
	if v.enumerate != nil {
		v.enumerate.Add(v.bound, word)
	}
	id := v.bound
	v.bound++
	return id, nil
}

// FinishedLoading freezes the table and writes the header. reorder is
// ignored: identities are already final.
func (v *ProbingVocabulary) FinishedLoading(_ Swapper) error {
	if v.table == nil {
		return vocaberrors.ErrNotSetup
	}
	if v.finished {
		return vocaberrors.ErrFinished
	}
	v.table.FinishedInserting()
	hdr := layout.ProbingHeader{Version: layout.ProbingVersion, Bound: uint32(v.bound)}
	hdr.EncodeTo(v.header)
	v.finished = true
	v.resolve(v)
	return nil
}

// LoadedBinary validates the header and re-attaches the table.
func (v *ProbingVocabulary) LoadedBinary(words io.Reader, sink Enumerator) error {
	if v.table == nil {
		return vocaberrors.ErrNotSetup
	}
	hdr, err := layout.DecodeProbingHeader(v.header)
	if err != nil {
		return err
	}
	v.table.LoadedBinary()
	v.bound = WordIndex(hdr.Bound)
	v.finished = true

	if sink != nil {
		seedUnknown(sink)
		got, err := readWords(words, sink)
		if err != nil {
			return err
		}
		if got != v.bound {
			return fmt.Errorf("%w: word stream holds %d words, header bound is %d",
				vocaberrors.ErrCorruptedFile, got-1, hdr.Bound)
		}
	}
	v.resolve(v)
	return nil
}

// Index returns the identity of word, 0 if absent.
func (v *ProbingVocabulary) Index(word []byte) WordIndex {
	return v.find(HashWord(word))
}

// IndexString is Index for a string.
func (v *ProbingVocabulary) IndexString(word string) WordIndex {
	return v.find(hashString(word))
}

func (v *ProbingVocabulary) find(h uint64) WordIndex {
	if v.table == nil {
		return 0
	}
	id, _ := v.table.Find(h)
	return WordIndex(id)
}

// Bound returns the number of identities including <unk>.
func (v *ProbingVocabulary) Bound() WordIndex { return v.bound }
