//go:build linux

package region

import (
	"os"

	"golang.org/x/sys/unix"
)

// AdviseSequential hints to the kernel that [offset, offset+length) of f
// will be read sequentially. Applied before streaming vocabulary words.
// Best-effort: errors are silently ignored.
func AdviseSequential(f *os.File, offset, length int64) {
	_ = unix.Fadvise(int(f.Fd()), offset, length, unix.FADV_SEQUENTIAL)
}
