// Package probing implements a fixed-capacity open-addressing hash table
// over 64-bit keys, laid out directly in a caller-owned byte region so that
// a populated table can be written to disk and memory-mapped back.
//
// Each slot is a 16-byte little-endian record:
//
//	Offset  Size  Field
//	0       8     Key    uint64_le (already a hash; used as-is)
//	8       4     Value  uint32_le (0 marks an empty slot)
//	12      4     Pad    zero
//
// Lookups start at the key's home slot and scan forward, wrapping at the end,
// until the key or an empty slot is found. There is no deletion.
package probing

import (
	"encoding/binary"
	"fmt"

	vocaberrors "github.com/tamirms/lmvocab/errors"
	intbits "github.com/tamirms/lmvocab/internal/bits"
)

// EntrySize is the size of one slot record in bytes.
const EntrySize = 16

// Buckets returns the slot count for entries keys at the given load-factor
// multiplier. There is always at least one slot more than entries so a
// probe sequence always terminates.
func Buckets(entries int, multiplier float64) int {
	buckets := int(float64(entries) * multiplier)
	if buckets < entries+1 {
		buckets = entries + 1
	}
	return buckets
}

// Size returns the bytes required for a table of entries keys.
func Size(entries int, multiplier float64) int {
	return Buckets(entries, multiplier) * EntrySize
}

// Table is a probing hash table viewed over a byte region.
//
// Insert and FinishedInserting must be called from one goroutine. After
// FinishedInserting or LoadedBinary, Find is safe for concurrent use.
type Table struct {
	mem      []byte
	buckets  uint64
	entries  int
	finished bool
}

// New attaches a table to mem. The bucket count is len(mem)/EntrySize;
// mem must be zeroed for a fresh table.
func New(mem []byte) (*Table, error) {
	buckets := len(mem) / EntrySize
	if buckets < 1 {
		return nil, fmt.Errorf("%w: probing table needs at least %d bytes, got %d",
			vocaberrors.ErrCorruptedFile, EntrySize, len(mem))
	}
	return &Table{
		mem:     mem[:buckets*EntrySize],
		buckets: uint64(buckets),
	}, nil
}

// Buckets returns the number of slots.
func (t *Table) Buckets() int { return int(t.buckets) }

// Len returns the number of keys inserted through this Table. It is zero for
// a table attached with LoadedBinary.
func (t *Table) Len() int { return t.entries }

// Finished reports whether the table is frozen.
func (t *Table) Finished() bool { return t.finished }

// Insert stores key with value. value must be non-zero.
func (t *Table) Insert(key uint64, value uint32) error {
	if t.finished {
		return vocaberrors.ErrFinished
	}
	if value == 0 {
		return vocaberrors.ErrInvalidValue
	}
	if uint64(t.entries+1) >= t.buckets {
		return fmt.Errorf("%w: %d buckets hold %d entries", vocaberrors.ErrTableFull, t.buckets, t.entries)
	}

	slot := t.home(key)
	for {
		rec := t.record(slot)
		if binary.LittleEndian.Uint32(rec[8:12]) == 0 {
			binary.LittleEndian.PutUint64(rec[0:8], key)
			binary.LittleEndian.PutUint32(rec[8:12], value)
			t.entries++
			return nil
		}
		if binary.LittleEndian.Uint64(rec[0:8]) == key {
			return fmt.Errorf("%w: key 0x%016x", vocaberrors.ErrDuplicateKey, key)
		}
		slot = t.next(slot)
	}
}

// FinishedInserting freezes the table. Further inserts fail.
func (t *Table) FinishedInserting() {
	t.finished = true
}

// LoadedBinary freezes a table whose region was populated by an earlier
// process, without re-inserting anything.
func (t *Table) LoadedBinary() {
	t.finished = true
}

// Find returns the value stored for key.
func (t *Table) Find(key uint64) (uint32, bool) {
	slot := t.home(key)
	for range t.buckets {
		rec := t.record(slot)
		value := binary.LittleEndian.Uint32(rec[8:12])
		if value == 0 {
			return 0, false
		}
		if binary.LittleEndian.Uint64(rec[0:8]) == key {
			return value, true
		}
		slot = t.next(slot)
	}
	// Only reachable for a corrupted region with no empty slot.
	return 0, false
}

func (t *Table) home(key uint64) uint64 {
	return intbits.FastRange64(key, t.buckets)
}

func (t *Table) next(slot uint64) uint64 {
	slot++
	if slot == t.buckets {
		return 0
	}
	return slot
}

func (t *Table) record(slot uint64) []byte {
	off := slot * EntrySize
	return t.mem[off : off+EntrySize]
}
