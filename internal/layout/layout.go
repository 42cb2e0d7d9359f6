// Package layout holds the byte-level layout of the two vocabulary regions.
//
// Sorted region:
//
//	Offset  Size       Field
//	0       8          Count   uint64_le (words stored, excluding <unk>)
//	8       8*entries  Hashes  uint64_le each, ascending after finalize
//
// Probing region:
//
//	Offset  Size  Field
//	0       4     Version  uint32_le (ProbingVersion)
//	4       4     Bound    uint32_le (words including <unk>)
//	8       ...   probing hash table (see internal/probing)
//
// Nothing here touches memory beyond decoding and encoding fixed fields; all
// bounds are checked once, so callers can index the returned spans freely.
package layout

import (
	"encoding/binary"
	"fmt"

	vocaberrors "github.com/tamirms/lmvocab/errors"
	intbits "github.com/tamirms/lmvocab/internal/bits"
	"github.com/tamirms/lmvocab/internal/probing"
)

const (
	// sortedCountSize is the size of the count prefix in a sorted region.
	sortedCountSize = 8

	// hashSize is the size of one stored hash.
	hashSize = 8

	// ProbingHeaderSize is the exact size of the serialized probing header.
	ProbingHeaderSize = 8

	// ProbingVersion is the probing region format this code reads and writes.
	// Bump it whenever the table packing changes.
	ProbingVersion = uint32(0)
)

// Align8 rounds x up to the next multiple of 8.
func Align8(x int) int {
	return int(intbits.AlignUp(uint64(x), 8))
}

// SortedSize returns the bytes needed by a sorted region of entries words.
func SortedSize(entries int) int {
	return sortedCountSize + hashSize*entries
}

// ProbingSize returns the bytes needed by a probing region of entries words.
func ProbingSize(entries int, multiplier float64) int {
	return Align8(ProbingHeaderSize) + probing.Size(entries, multiplier)
}

// ProbingTable returns the table span of a probing region.
func ProbingTable(mem []byte) ([]byte, error) {
	start := Align8(ProbingHeaderSize)
	if len(mem) < start+probing.EntrySize {
		return nil, fmt.Errorf("%w: probing region of %d bytes", vocaberrors.ErrTruncatedFile, len(mem))
	}
	return mem[start:], nil
}

// SortedHashes returns the hash array span of a sorted region sized for
// capacity entries.
func SortedHashes(mem []byte) ([]byte, error) {
	if len(mem) < sortedCountSize {
		return nil, fmt.Errorf("%w: sorted region of %d bytes", vocaberrors.ErrTruncatedFile, len(mem))
	}
	n := (len(mem) - sortedCountSize) / hashSize
	return mem[sortedCountSize : sortedCountSize+n*hashSize], nil
}

// SortedCount reads the stored count of a sorted region and checks it fits.
func SortedCount(mem []byte) (int, error) {
	if len(mem) < sortedCountSize {
		return 0, fmt.Errorf("%w: sorted region of %d bytes", vocaberrors.ErrTruncatedFile, len(mem))
	}
	count := binary.LittleEndian.Uint64(mem[0:sortedCountSize])
	capacity := uint64(len(mem)-sortedCountSize) / hashSize
	if count > capacity {
		return 0, fmt.Errorf("%w: sorted count %d exceeds capacity %d", vocaberrors.ErrCorruptedFile, count, capacity)
	}
	return int(count), nil
}

// PutSortedCount writes the count prefix of a sorted region.
func PutSortedCount(mem []byte, count int) {
	binary.LittleEndian.PutUint64(mem[0:sortedCountSize], uint64(count))
}

// Hash returns the i-th stored hash of a sorted hash array span.
func Hash(hashes []byte, i int) uint64 {
	return binary.LittleEndian.Uint64(hashes[i*hashSize:])
}

// PutHash stores the i-th hash of a sorted hash array span.
func PutHash(hashes []byte, i int, h uint64) {
	binary.LittleEndian.PutUint64(hashes[i*hashSize:], h)
}

// ProbingHeader is the fixed header at the front of a probing region.
type ProbingHeader struct {
	Version uint32
	Bound   uint32
}

// EncodeTo serializes the header into buf.
func (h *ProbingHeader) EncodeTo(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Version)
	binary.LittleEndian.PutUint32(buf[4:8], h.Bound)
}

// DecodeProbingHeader parses and validates a probing header. A version other
// than ProbingVersion is never reinterpreted.
func DecodeProbingHeader(buf []byte) (*ProbingHeader, error) {
	if len(buf) < ProbingHeaderSize {
		return nil, vocaberrors.ErrTruncatedFile
	}
	h := &ProbingHeader{
		Version: binary.LittleEndian.Uint32(buf[0:4]),
		Bound:   binary.LittleEndian.Uint32(buf[4:8]),
	}
	if h.Version != ProbingVersion {
		return nil, fmt.Errorf("%w: the binary file has probing version %d but the code expects version %d; "+
			"rebuild the binary file with this version of the code",
			vocaberrors.ErrFormatVersion, h.Version, ProbingVersion)
	}
	if h.Bound == 0 {
		return nil, fmt.Errorf("%w: probing bound is 0", vocaberrors.ErrCorruptedFile)
	}
	return h, nil
}
