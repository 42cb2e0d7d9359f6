// Package errors defines all exported error sentinels for the lmvocab library.
//
// This is the single source of truth for error values. The top-level lmvocab
// package and the internal region, layout and probing packages all import
// from here, so errors.Is checks work across package boundaries.
package errors

import "errors"

// I/O and memory errors. These are terminal: callers should not retry the
// load in place.
var (
	ErrIO          = errors.New("lmvocab: i/o failure")
	ErrOutOfMemory = errors.New("lmvocab: out of memory")
)

// Binary format errors
var (
	ErrFormatVersion     = errors.New("lmvocab: binary format version mismatch")
	ErrInvalidMagic      = errors.New("lmvocab: invalid magic number")
	ErrInvalidVersion    = errors.New("lmvocab: unsupported container version")
	ErrTruncatedFile     = errors.New("lmvocab: binary file is truncated")
	ErrCorruptedFile     = errors.New("lmvocab: binary file is corrupted")
	ErrChecksumFailed    = errors.New("lmvocab: file checksum verification failed")
	ErrMissingTerminator = errors.New("lmvocab: missing null terminator on a vocab word")
	ErrUnknownType       = errors.New("lmvocab: unknown vocabulary type")
)

// Load errors
var (
	ErrMissingSpecialWord = errors.New("lmvocab: missing special word")
	ErrMalformedLine      = errors.New("lmvocab: malformed vocabulary line")
	ErrInvalidConfig      = errors.New("lmvocab: invalid configuration")
)

// Insert errors
var (
	ErrTooManyWords  = errors.New("lmvocab: more words than the vocabulary was sized for")
	ErrDuplicateWord = errors.New("lmvocab: duplicate word (or 64-bit hash collision)")
	ErrFinished      = errors.New("lmvocab: vocabulary is finalized")
	ErrNotSetup      = errors.New("lmvocab: vocabulary memory is not set up")
)

// Hash table errors (used by internal/probing)
var (
	ErrTableFull    = errors.New("lmvocab: probing table is full")
	ErrDuplicateKey = errors.New("lmvocab: duplicate key in probing table")
	ErrInvalidValue = errors.New("lmvocab: probing table value 0 is reserved")
)

// Model errors
var (
	ErrModelClosed = errors.New("lmvocab: model is closed")
)
