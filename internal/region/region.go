// Package region owns the byte ranges that back a vocabulary: memory-mapped
// files, heap buffers filled by a blocking read, and scratch arrays.
//
// A Region records where its bytes came from and releases them the matching
// way. A mapped region is flushed to its backing file and then unmapped; if
// either step fails the process panics, because continuing with a mapping in
// an unknown state risks corrupting the file.
package region

import (
	"fmt"

	"github.com/edsrzf/mmap-go"
	vocaberrors "github.com/tamirms/lmvocab/errors"
)

// Origin records how a Region's bytes were obtained.
type Origin uint8

const (
	// None means the region holds nothing.
	None Origin = iota
	// MappedFile is a file-backed or anonymous mmap.
	MappedFile
	// HeapOwned is a heap buffer owned by the region (ReadAsHeap, Reallocate).
	HeapOwned
	// ScratchArray is a heap array handed to the region by its creator.
	ScratchArray
)

// String returns the origin name.
func (o Origin) String() string {
	switch o {
	case None:
		return "none"
	case MappedFile:
		return "mapped"
	case HeapOwned:
		return "heap"
	case ScratchArray:
		return "scratch"
	default:
		return "unknown"
	}
}

// MaxHeapSize is the largest heap buffer Reallocate will attempt.
const MaxHeapSize = 1 << 40

// Region is an exclusively owned byte range.
//
// A Region is not safe for concurrent mutation. The bytes it returns may be
// read concurrently once the owner stops writing.
type Region struct {
	data   []byte
	origin Origin
}

// New returns a region adopting data with the given origin.
func New(data []byte, origin Origin) *Region {
	r := &Region{}
	r.Reset(data, origin)
	return r
}

// Scratch returns a region over a freshly allocated zeroed heap array.
func Scratch(size int) *Region {
	return New(make([]byte, size), ScratchArray)
}

// Bytes returns the held range, nil when empty.
func (r *Region) Bytes() []byte { return r.data }

// Size returns the number of bytes held.
func (r *Region) Size() int { return len(r.data) }

// Origin returns how the current bytes were obtained.
func (r *Region) Origin() Origin { return r.origin }

// Reset releases the current range according to its origin and adopts data.
// Passing a nil data with None leaves the region empty.
func (r *Region) Reset(data []byte, origin Origin) {
	r.release()
	if len(data) == 0 {
		origin = None
		data = nil
	}
	r.data = data
	r.origin = origin
}

// Release is Reset(nil, None). It is idempotent.
func (r *Region) Release() {
	r.Reset(nil, None)
}

// Flush writes dirty pages of a mapped region back to its file.
// It is a no-op for heap regions.
func (r *Region) Flush() error {
	if r.origin != MappedFile {
		return nil
	}
	if err := mmap.MMap(r.data).Flush(); err != nil {
		return fmt.Errorf("%w: msync of %d bytes: %w", vocaberrors.ErrIO, len(r.data), err)
	}
	return nil
}

// Reallocate resizes a heap-owned (or empty) region, keeping the common
// prefix. If size cannot be allocated the region is emptied and
// ErrOutOfMemory is returned; callers treat that as fatal.
// Calling Reallocate on a mapped or scratch region panics.
func (r *Region) Reallocate(size int) error {
	if r.origin != HeapOwned && r.origin != None {
		panic(fmt.Sprintf("region: Reallocate on %s region", r.origin))
	}
	if size < 0 || uint64(size) > MaxHeapSize {
		r.Release()
		return fmt.Errorf("%w: reallocating to %d bytes", vocaberrors.ErrOutOfMemory, size)
	}
	if size <= cap(r.data) {
		r.data = r.data[:size]
		if size == 0 {
			r.Release()
		}
		return nil
	}
	grown := make([]byte, size)
	copy(grown, r.data)
	r.data = grown
	r.origin = HeapOwned
	return nil
}

// release frees the current range. Mapped ranges are synced before unmap;
// the order matters for NFS-backed files.
func (r *Region) release() {
	switch r.origin {
	case MappedFile:
		mm := mmap.MMap(r.data)
		if len(mm) > 0 {
			if err := mm.Flush(); err != nil {
				panic(fmt.Sprintf("region: msync failed for %d bytes: %v", len(mm), err))
			}
			if err := mm.Unmap(); err != nil {
				panic(fmt.Sprintf("region: munmap failed for %d bytes: %v", len(r.data), err))
			}
		}
	case HeapOwned, ScratchArray, None:
		// Dropping the reference is enough; the collector owns heap memory.
	}
	r.data = nil
	r.origin = None
}
