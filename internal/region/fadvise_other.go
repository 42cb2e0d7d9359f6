//go:build !linux

package region

import "os"

// AdviseSequential is a no-op on non-Linux platforms.
// FADV_SEQUENTIAL is Linux-specific.
func AdviseSequential(f *os.File, offset, length int64) {
	// No-op
}
