//go:build linux

package region

import (
	"os"

	"golang.org/x/sys/unix"
)

// populateSupported reports whether MAP_POPULATE is available.
const populateSupported = true

// mapPopulate maps size bytes of f read-only and asks the kernel to fault
// every page in before returning. The slice is compatible with mmap.MMap.
func mapPopulate(f *os.File, offset int64, size int) ([]byte, error) {
	return unix.Mmap(int(f.Fd()), offset, size, unix.PROT_READ, unix.MAP_SHARED|unix.MAP_POPULATE)
}
