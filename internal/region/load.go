package region

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
	vocaberrors "github.com/tamirms/lmvocab/errors"
)

// LoadMethod selects how MapRead populates a region from a file.
type LoadMethod uint8

const (
	// Lazy maps the file and lets pages fault in on first touch.
	Lazy LoadMethod = iota
	// PopulateEagerly maps the file and asks the kernel to prefetch every
	// page where supported, otherwise behaves like Lazy.
	PopulateEagerly
	// ReadAsHeap allocates a heap buffer and fills it with a blocking
	// positioned read. The file is never mapped.
	ReadAsHeap
	// PopulateOrRead is PopulateEagerly where populate-on-map exists and
	// ReadAsHeap elsewhere.
	PopulateOrRead
)

// String returns the method name accepted by ParseLoadMethod.
func (m LoadMethod) String() string {
	switch m {
	case Lazy:
		return "lazy"
	case PopulateEagerly:
		return "populate"
	case ReadAsHeap:
		return "read"
	case PopulateOrRead:
		return "populate-or-read"
	default:
		return "unknown"
	}
}

// ParseLoadMethod is the inverse of LoadMethod.String.
func ParseLoadMethod(s string) (LoadMethod, error) {
	for m := Lazy; m <= PopulateOrRead; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown load method %q", vocaberrors.ErrInvalidConfig, s)
}

// Resolve returns the method MapRead will actually use on this platform.
func (m LoadMethod) Resolve() LoadMethod {
	switch m {
	case PopulateEagerly:
		if !populateSupported {
			return Lazy
		}
	case PopulateOrRead:
		if populateSupported {
			return PopulateEagerly
		}
		return ReadAsHeap
	}
	return m
}

// MapRead makes size bytes of f starting at offset available according to
// method. Mapped methods require a page-aligned offset.
func MapRead(method LoadMethod, f *os.File, offset int64, size int) (*Region, error) {
	if size == 0 {
		return New(nil, None), nil
	}
	method = method.Resolve()
	if method != ReadAsHeap && offset%int64(os.Getpagesize()) != 0 {
		return nil, fmt.Errorf("%w: mmap offset %d is not page aligned", vocaberrors.ErrInvalidConfig, offset)
	}

	switch method {
	case Lazy:
		mm, err := mmap.MapRegion(f, size, mmap.RDONLY, 0, offset)
		if err != nil {
			return nil, fmt.Errorf("%w: mmap %s failed for size %d at offset %d: %w",
				vocaberrors.ErrIO, f.Name(), size, offset, err)
		}
		return New(mm, MappedFile), nil
	case PopulateEagerly:
		data, err := mapPopulate(f, offset, size)
		if err != nil {
			return nil, fmt.Errorf("%w: mmap %s failed for size %d at offset %d: %w",
				vocaberrors.ErrIO, f.Name(), size, offset, err)
		}
		return New(data, MappedFile), nil
	case ReadAsHeap:
		return ReadHeap(f, offset, size)
	}
	return nil, fmt.Errorf("%w: load method %d", vocaberrors.ErrInvalidConfig, method)
}

// ReadHeap allocates size bytes and fills them from f at offset with a
// blocking positioned read.
func ReadHeap(f *os.File, offset int64, size int) (*Region, error) {
	if size < 0 || uint64(size) > MaxHeapSize {
		return nil, fmt.Errorf("%w: allocating %d bytes", vocaberrors.ErrOutOfMemory, size)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(f, offset, int64(size)), buf); err != nil {
		return nil, fmt.Errorf("%w: reading %d bytes at offset %d of %s: %w",
			vocaberrors.ErrIO, size, offset, f.Name(), err)
	}
	return New(buf, HeapOwned), nil
}

// MapAnonymous returns size zeroed bytes from an anonymous private mapping.
func MapAnonymous(size int) (*Region, error) {
	if size == 0 {
		return New(nil, None), nil
	}
	mm, err := mmap.MapRegion(nil, size, mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: anonymous mmap of %d bytes: %w", vocaberrors.ErrIO, size, err)
	}
	return New(mm, MappedFile), nil
}

// MapZeroedWrite creates (or truncates) the file at path, sizes it to exactly
// size bytes and maps it writable. The caller owns the returned file and
// must close it after releasing the region.
func MapZeroedWrite(path string, size int) (*Region, *os.File, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to open %s for writing: %w", vocaberrors.ErrIO, path, err)
	}
	if err := fallocateFile(file, int64(size)); err != nil {
		primaryErr := fmt.Errorf("%w: ftruncate on %s to %d failed: %w", vocaberrors.ErrIO, path, size, err)
		return nil, nil, errors.Join(primaryErr, file.Close())
	}
	if size == 0 {
		return New(nil, None), file, nil
	}
	mm, err := mmap.MapRegion(file, size, mmap.RDWR, 0, 0)
	if err != nil {
		primaryErr := fmt.Errorf("%w: mmap failed for size %d in file %s: %w", vocaberrors.ErrIO, size, path, err)
		return nil, nil, errors.Join(primaryErr, file.Close())
	}
	return New(mm, MappedFile), file, nil
}
