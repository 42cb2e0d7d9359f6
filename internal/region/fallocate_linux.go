//go:build linux

package region

import (
	"os"

	"golang.org/x/sys/unix"
)

// fallocateFile reserves size bytes for a file that is about to be mapped
// writable, so stores through the mapping cannot SIGBUS on a full disk.
// On Linux, uses the fallocate syscall for efficient space reservation.
func fallocateFile(file *os.File, size int64) error {
	err := unix.Fallocate(int(file.Fd()), 0, 0, size)
	if err != nil {
		// Fallback to ftruncate if fallocate fails (e.g., NFS, some filesystems)
		return unix.Ftruncate(int(file.Fd()), size)
	}
	// Fallocate allocates blocks but doesn't set file size - must also truncate
	return unix.Ftruncate(int(file.Fd()), size)
}
