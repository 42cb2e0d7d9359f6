//go:build !linux && !darwin

package region

import "os"

// fallocateFile reserves size bytes for a file that is about to be mapped
// writable, so stores through the mapping cannot SIGBUS on a full disk.
// On platforms without native fallocate, uses Truncate as a fallback.
// Note: This sets file size but may not reserve actual disk blocks on all filesystems.
func fallocateFile(file *os.File, size int64) error {
	return file.Truncate(size)
}
