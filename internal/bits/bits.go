// Package bits provides low-level bit manipulation primitives.
package bits

import "math/bits"

// FastRange64 maps a 64-bit hash uniformly to [0, n).
// Uses the "fastrange" technique: multiply and take the high word.
// This is the standard way to map hashes to ranges without modulo bias.
func FastRange64(hash, n uint64) uint64 {
	if n == 0 {
		return 0
	}
	hi, _ := bits.Mul64(hash, n)
	return hi
}

// AlignUp rounds x up to the next multiple of align, which must be a power
// of two.
func AlignUp(x, align uint64) uint64 {
	return (x + align - 1) &^ (align - 1)
}
