package lmvocab

import (
	"fmt"
	"io"
	"sort"

	vocaberrors "github.com/tamirms/lmvocab/errors"
	"github.com/tamirms/lmvocab/internal/layout"
)

// SortedVocabulary stores word hashes in an array that is sorted once, at
// FinishedLoading. A word's identity is its 1-based position in the sorted
// array, so identities returned by Insert are provisional: they are insert
// positions, which FinishedLoading permutes (along with the caller's weights).
//
// Use it when building from a text source whose final sort order becomes the
// served lookup order.
type SortedVocabulary struct {
	specials

	mem      []byte // whole region: count prefix + hashes
	hashes   []byte // hash array span
	capacity int
	count    int
	bound    WordIndex

	enumerate Enumerator
	strings   [][]byte // buffered words, same positions as hashes

	setup    bool
	finished bool
}

// Type returns SortedType.
func (v *SortedVocabulary) Type() VocabularyType { return SortedType }

// SetupMemory attaches the vocabulary to mem, which must hold at least
// layout.SortedSize(entries) bytes.
func (v *SortedVocabulary) SetupMemory(mem []byte, entries int, _ float64) error {
	need := layout.SortedSize(entries)
	if len(mem) < need {
		return fmt.Errorf("%w: sorted region of %d bytes, need %d", vocaberrors.ErrTruncatedFile, len(mem), need)
	}
	mem = mem[:need]
	hashes, err := layout.SortedHashes(mem)
	if err != nil {
		return err
	}
	*v = SortedVocabulary{
		mem:      mem,
		hashes:   hashes,
		capacity: entries,
		bound:    1,
		setup:    true,
	}
	return nil
}

// ConfigureEnumerate registers sink. Words are buffered until
// FinishedLoading, where they are reported in sorted order.
func (v *SortedVocabulary) ConfigureEnumerate(sink Enumerator, maxEntries int) {
	v.enumerate = sink
	v.strings = nil
	if sink != nil {
		seedUnknown(sink)
		v.strings = make([][]byte, 0, maxEntries)
	}
}

// Insert appends the hash of word and returns its provisional identity.
func (v *SortedVocabulary) Insert(word []byte) (WordIndex, error) {
	if !v.setup {
		return 0, vocaberrors.ErrNotSetup
	}
	if v.finished {
		return 0, vocaberrors.ErrFinished
	}
	h := HashWord(word)
	if isUnknown(h) {
		v.sawUnknown = true
		return 0, nil
	}
	if v.count == v.capacity {
		return 0, fmt.Errorf("%w: capacity %d", vocaberrors.ErrTooManyWords, v.capacity)
	}
	layout.PutHash(v.hashes, v.count, h)
	if v.enumerate != nil {
		v.strings = append(v.strings, append([]byte(nil), word...))
	}
	v.count++
	v.bound = WordIndex(v.count + 1)
	// Positions are 1-based; identity 0 is <unk>.
	return WordIndex(v.count), nil
}

// FinishedLoading sorts the hashes and permutes reorder alongside them.
// reorder is indexed by identity, so its element 0 (<unk>) never moves.
func (v *SortedVocabulary) FinishedLoading(reorder Swapper) error {
	if !v.setup {
		return vocaberrors.ErrNotSetup
	}
	if v.finished {
		return vocaberrors.ErrFinished
	}

	sort.Sort(&jointSort{
		hashes:  v.hashes,
		n:       v.count,
		strings: v.strings,
		reorder: reorder,
	})
	for i := 1; i < v.count; i++ {
		if h := layout.Hash(v.hashes, i); h == layout.Hash(v.hashes, i-1) {
			return fmt.Errorf("%w: hash 0x%016x at identities %d and %d", vocaberrors.ErrDuplicateWord, h, i, i+1)
		}
	}

	if v.enumerate != nil {
		for i, word := range v.strings {
			v.enumerate.Add(WordIndex(i+1), word)
		}
	}
	v.strings = nil

	layout.PutSortedCount(v.mem, v.count)
	v.bound = WordIndex(v.count + 1)
	v.finished = true
	v.resolve(v)
	return nil
}

// LoadedBinary attaches to a sorted region written by FinishedLoading.
func (v *SortedVocabulary) LoadedBinary(words io.Reader, sink Enumerator) error {
	if !v.setup {
		return vocaberrors.ErrNotSetup
	}
	count, err := layout.SortedCount(v.mem)
	if err != nil {
		return err
	}
	v.count = count
	v.bound = WordIndex(count + 1)
	v.finished = true

	if sink != nil {
		seedUnknown(sink)
		got, err := readWords(words, sink)
		if err != nil {
			return err
		}
		if got != v.bound {
			return fmt.Errorf("%w: word stream holds %d words, vocabulary has %d",
				vocaberrors.ErrCorruptedFile, got-1, count)
		}
	}
	v.resolve(v)
	return nil
}

// Index binary-searches the sorted hashes. The result is only meaningful
// after FinishedLoading or LoadedBinary.
func (v *SortedVocabulary) Index(word []byte) WordIndex {
	return v.find(HashWord(word))
}

// IndexString is Index for a string.
func (v *SortedVocabulary) IndexString(word string) WordIndex {
	return v.find(hashString(word))
}

func (v *SortedVocabulary) find(h uint64) WordIndex {
	lo, hi := 0, v.count
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if layout.Hash(v.hashes, mid) < h {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < v.count && layout.Hash(v.hashes, lo) == h {
		return WordIndex(lo + 1)
	}
	return 0
}

// Bound returns the number of identities including <unk>.
func (v *SortedVocabulary) Bound() WordIndex { return v.bound }

// jointSort orders the hash array and permutes the buffered strings and the
// caller's payload with the same swaps.
type jointSort struct {
	hashes  []byte
	n       int
	strings [][]byte
	reorder Swapper
}

func (s *jointSort) Len() int { return s.n }

func (s *jointSort) Less(i, j int) bool {
	return layout.Hash(s.hashes, i) < layout.Hash(s.hashes, j)
}

func (s *jointSort) Swap(i, j int) {
	hi, hj := layout.Hash(s.hashes, i), layout.Hash(s.hashes, j)
	layout.PutHash(s.hashes, i, hj)
	layout.PutHash(s.hashes, j, hi)
	if s.strings != nil {
		s.strings[i], s.strings[j] = s.strings[j], s.strings[i]
	}
	if s.reorder != nil {
		s.reorder.Swap(i+1, j+1)
	}
}
