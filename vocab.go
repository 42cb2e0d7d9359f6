package lmvocab

import (
	"fmt"
	"io"
	"unsafe"

	"github.com/spaolacci/murmur3"
	vocaberrors "github.com/tamirms/lmvocab/errors"
	"github.com/tamirms/lmvocab/internal/layout"
)

// WordIndex is the dense identity of a vocabulary word.
// 0 is reserved for the unknown word.
type WordIndex uint32

// Special word spellings.
const (
	UnknownWord   = "<unk>"
	BeginSentence = "<s>"
	EndSentence   = "</s>"

	// unknownCapWord is the upper-case spelling some models use for <unk>.
	unknownCapWord = "<UNK>"
)

var (
	unknownHash    = HashWord([]byte(UnknownWord))
	unknownCapHash = HashWord([]byte(unknownCapWord))
)

// HashWord returns the 64-bit vocabulary hash of word: the low 64 bits of
// MurmurHash3 x64-128 with seed 0. The value is part of the binary format.
func HashWord(word []byte) uint64 {
	return murmur3.Sum64(word)
}

// hashString hashes s without copying it.
func hashString(s string) uint64 {
	return HashWord(unsafe.Slice(unsafe.StringData(s), len(s)))
}

// isUnknown reports whether h is one of the recognised <unk> spellings.
func isUnknown(h uint64) bool {
	return h == unknownHash || h == unknownCapHash
}

// Enumerator receives (identity, word) pairs, at most once per identity.
// word is only valid for the duration of the call.
type Enumerator interface {
	Add(index WordIndex, word []byte)
}

// Swapper is a per-identity payload array that the sorted vocabulary
// permutes alongside its hashes. Weights implements it.
type Swapper interface {
	Swap(i, j int)
}

// VocabularyType identifies the lookup strategy. It is stored in the binary
// file header.
type VocabularyType uint16

const (
	// ProbingType assigns identities at insert time and looks them up in an
	// open-addressing hash table.
	ProbingType VocabularyType = 0

	// SortedType sorts hashes at finalize time and looks them up by binary
	// search. Identities are positions in sorted order.
	SortedType VocabularyType = 1
)

// String returns the type name.
func (t VocabularyType) String() string {
	switch t {
	case ProbingType:
		return "probing"
	case SortedType:
		return "sorted"
	default:
		return "unknown"
	}
}

// ParseVocabularyType is the inverse of VocabularyType.String.
func ParseVocabularyType(s string) (VocabularyType, error) {
	switch s {
	case "probing":
		return ProbingType, nil
	case "sorted":
		return SortedType, nil
	}
	return 0, fmt.Errorf("%w: %q", vocaberrors.ErrUnknownType, s)
}

// Vocabulary is the contract shared by both lookup strategies.
//
// # Lifecycle
//
//  1. SetupMemory with a zeroed region of RequiredSize bytes.
//  2. Optionally ConfigureEnumerate.
//  3. Either Insert every word and call FinishedLoading once, or call
//     LoadedBinary on a region populated by an earlier FinishedLoading.
//
// # Thread Safety
//
// Steps 1-3 must run on one goroutine. Afterwards every read method is safe
// for concurrent use without synchronization.
type Vocabulary interface {
	// Type returns the lookup strategy.
	Type() VocabularyType

	// SetupMemory attaches the vocabulary to mem, sized for at most entries
	// distinct words.
	SetupMemory(mem []byte, entries int, multiplier float64) error

	// ConfigureEnumerate registers sink (nil to disable). The sink receives
	// (0, "<unk>") immediately. maxEntries bounds the strings the sorted
	// variant buffers until finalize.
	ConfigureEnumerate(sink Enumerator, maxEntries int)

	// Insert adds word and returns its identity. Either <unk> spelling
	// returns 0 and only records that the unknown word was seen.
	Insert(word []byte) (WordIndex, error)

	// FinishedLoading freezes the vocabulary and writes its header into the
	// region. reorder may be nil; the sorted variant permutes it alongside
	// its hashes.
	FinishedLoading(reorder Swapper) error

	// LoadedBinary attaches to a region written by FinishedLoading. words is
	// the word stream, read only when sink is non-nil.
	LoadedBinary(words io.Reader, sink Enumerator) error

	// Index returns the identity of word, or 0 if it is not present.
	Index(word []byte) WordIndex

	// IndexString is Index for a string, without copying.
	IndexString(word string) WordIndex

	// Bound returns one more than the highest identity.
	Bound() WordIndex

	// BeginSentence returns the identity of <s>, 0 if absent.
	BeginSentence() WordIndex

	// EndSentence returns the identity of </s>, 0 if absent.
	EndSentence() WordIndex

	// NotFound returns the unknown identity, always 0.
	NotFound() WordIndex

	// SawUnknown reports whether an <unk> spelling was inserted.
	SawUnknown() bool
}

// NewVocabulary returns an empty vocabulary of the given type.
func NewVocabulary(t VocabularyType) (Vocabulary, error) {
	switch t {
	case ProbingType:
		return &ProbingVocabulary{}, nil
	case SortedType:
		return &SortedVocabulary{}, nil
	}
	return nil, fmt.Errorf("%w: type %d", vocaberrors.ErrUnknownType, t)
}

// RequiredSize returns the region size a vocabulary of type t needs for
// entries distinct words. multiplier is ignored by the sorted type.
func RequiredSize(t VocabularyType, entries int, multiplier float64) (int, error) {
	switch t {
	case ProbingType:
		return layout.ProbingSize(entries, multiplier), nil
	case SortedType:
		return layout.SortedSize(entries), nil
	}
	return 0, fmt.Errorf("%w: type %d", vocaberrors.ErrUnknownType, t)
}

// specials caches the sentence marker identities. Embedded by both variants.
type specials struct {
	begin, end WordIndex
	sawUnknown bool
}

func (s *specials) BeginSentence() WordIndex { return s.begin }
func (s *specials) EndSentence() WordIndex   { return s.end }
func (s *specials) NotFound() WordIndex      { return 0 }
func (s *specials) SawUnknown() bool         { return s.sawUnknown }

// resolve looks the sentence markers up once the vocabulary is frozen.
func (s *specials) resolve(v interface{ IndexString(string) WordIndex }) {
	s.begin = v.IndexString(BeginSentence)
	s.end = v.IndexString(EndSentence)
}

// seedUnknown announces identity 0 to a newly configured sink.
func seedUnknown(sink Enumerator) {
	if sink != nil {
		sink.Add(0, []byte(UnknownWord))
	}
}
