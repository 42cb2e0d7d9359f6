package lmvocab

import (
	"encoding/binary"
	"fmt"
	"math"

	vocaberrors "github.com/tamirms/lmvocab/errors"
)

const (
	// magic number for lmvocab binary files
	// "LMVC" in little-endian
	magic = uint32(0x43564D4C)

	// version is the current container format version
	version = uint16(0x0001)

	// headerSize is the exact size of the serialized header (64 bytes)
	headerSize = 64

	// footerSize is the exact size of the serialized footer (32 bytes)
	footerSize = 32
)

// header is the 64-byte file header.
//
// Layout:
//
//	Offset  Size  Field        Type
//	0       4     Magic        0x43564D4C ("LMVC")
//	4       2     Version      0x0001
//	6       2     VocabType    uint16_le (0=probing, 1=sorted)
//	8       8     Entries      uint64_le (word capacity the vocab region is sized for)
//	16      8     Multiplier   float64_le bits (probing load factor)
//	24      4     Bound        uint32_le (words including <unk>)
//	28      4     Reserved     zero
//	32      8     VocabSize    uint64_le
//	40      8     WeightsSize  uint64_le
//	48      8     WordsSize    uint64_le (length of the word stream)
//	56      8     Reserved     zero
//
// The vocab region starts at headerSize, the weights region right after it,
// then the word stream and the footer.
type header struct {
	Magic       uint32
	Version     uint16
	VocabType   VocabularyType
	Entries     uint64
	Multiplier  float64
	Bound       uint32
	VocabSize   uint64
	WeightsSize uint64
	WordsSize   uint64
}

// encodeTo serializes the header to an existing buffer.
func (h *header) encodeTo(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	binary.LittleEndian.PutUint16(buf[6:8], uint16(h.VocabType))
	binary.LittleEndian.PutUint64(buf[8:16], h.Entries)
	binary.LittleEndian.PutUint64(buf[16:24], math.Float64bits(h.Multiplier))
	binary.LittleEndian.PutUint32(buf[24:28], h.Bound)
	clear(buf[28:32])
	binary.LittleEndian.PutUint64(buf[32:40], h.VocabSize)
	binary.LittleEndian.PutUint64(buf[40:48], h.WeightsSize)
	binary.LittleEndian.PutUint64(buf[48:56], h.WordsSize)
	clear(buf[56:64])
}

// decodeHeader parses a 64-byte header and checks that its fields agree with
// each other. Sizes against the file length are checked by the caller.
func decodeHeader(buf []byte) (*header, error) {
	if len(buf) < headerSize {
		return nil, vocaberrors.ErrTruncatedFile
	}

	h := &header{
		Magic:       binary.LittleEndian.Uint32(buf[0:4]),
		Version:     binary.LittleEndian.Uint16(buf[4:6]),
		VocabType:   VocabularyType(binary.LittleEndian.Uint16(buf[6:8])),
		Entries:     binary.LittleEndian.Uint64(buf[8:16]),
		Multiplier:  math.Float64frombits(binary.LittleEndian.Uint64(buf[16:24])),
		Bound:       binary.LittleEndian.Uint32(buf[24:28]),
		VocabSize:   binary.LittleEndian.Uint64(buf[32:40]),
		WeightsSize: binary.LittleEndian.Uint64(buf[40:48]),
		WordsSize:   binary.LittleEndian.Uint64(buf[48:56]),
	}

	if h.Magic != magic {
		return nil, vocaberrors.ErrInvalidMagic
	}
	if h.Version != version {
		return nil, fmt.Errorf("%w: file has version %d, code expects %d", vocaberrors.ErrInvalidVersion, h.Version, version)
	}
	if h.VocabType != ProbingType && h.VocabType != SortedType {
		return nil, fmt.Errorf("%w: type %d in header", vocaberrors.ErrUnknownType, h.VocabType)
	}
	if h.Bound == 0 || uint64(h.Bound) > h.Entries+1 {
		return nil, fmt.Errorf("%w: bound %d for %d entries", vocaberrors.ErrCorruptedFile, h.Bound, h.Entries)
	}
	if h.Entries > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d entries", vocaberrors.ErrCorruptedFile, h.Entries)
	}
	if h.VocabType == ProbingType && !(h.Multiplier > 1 && h.Multiplier < 1<<16) {
		return nil, fmt.Errorf("%w: probing multiplier %v", vocaberrors.ErrCorruptedFile, h.Multiplier)
	}

	// Declared sizes must match what the fields imply. A mismatch means the
	// file was written by different layout code and is never reinterpreted.
	want, err := RequiredSize(h.VocabType, int(h.Entries), h.Multiplier)
	if err != nil {
		return nil, err
	}
	if h.VocabSize != uint64(want) {
		return nil, fmt.Errorf("%w: vocab region is %d bytes, %s layout for %d entries needs %d",
			vocaberrors.ErrCorruptedFile, h.VocabSize, h.VocabType, h.Entries, want)
	}
	if h.WeightsSize != uint64(WeightsSize(int(h.Bound))) {
		return nil, fmt.Errorf("%w: weights region is %d bytes for bound %d",
			vocaberrors.ErrCorruptedFile, h.WeightsSize, h.Bound)
	}
	return h, nil
}

// weightsOffset returns the file offset of the weights region.
func (h *header) weightsOffset() uint64 { return headerSize + h.VocabSize }

// wordsOffset returns the file offset of the word stream.
func (h *header) wordsOffset() uint64 { return h.weightsOffset() + h.WeightsSize }

// footerOffset returns the file offset of the footer.
func (h *header) footerOffset() uint64 { return h.wordsOffset() + h.WordsSize }

// fileSize returns the total file size the header implies.
func (h *header) fileSize() uint64 { return h.footerOffset() + footerSize }

// footer is the 32-byte file footer.
//
// Layout:
//
//	Offset  Size  Field        Type
//	0       8     RegionHash   uint64_le (xxHash64 of header, vocab and weights)
//	8       8     WordsHash    uint64_le (XXH3-64 of the word stream)
//	16      16    Reserved     [16]byte (zero)
type footer struct {
	RegionHash uint64
	WordsHash  uint64
}

// encodeTo serializes the footer into an existing buffer.
func (f *footer) encodeTo(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], f.RegionHash)
	binary.LittleEndian.PutUint64(buf[8:16], f.WordsHash)
	clear(buf[16:32])
}

// decodeFooter parses a 32-byte footer.
func decodeFooter(buf []byte) (*footer, error) {
	if len(buf) < footerSize {
		return nil, vocaberrors.ErrTruncatedFile
	}
	return &footer{
		RegionHash: binary.LittleEndian.Uint64(buf[0:8]),
		WordsHash:  binary.LittleEndian.Uint64(buf[8:16]),
	}, nil
}
