//go:build !linux

package region

import (
	"os"

	"github.com/edsrzf/mmap-go"
)

// populateSupported is false: there is no populate-on-map flag here.
const populateSupported = false

// mapPopulate degrades to a lazy read-only mapping.
func mapPopulate(f *os.File, offset int64, size int) ([]byte, error) {
	return mmap.MapRegion(f, size, mmap.RDONLY, 0, offset)
}
