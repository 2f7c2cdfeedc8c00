//go:build linux

package ngramstore

import (
	"os"

	"golang.org/x/sys/unix"
)

// fallocateFile reserves size bytes for a values file so that a full disk
// fails here rather than as SIGBUS while the mapping is filled.
func fallocateFile(file *os.File, size int64) error {
	fd := int(file.Fd())
	if err := unix.Fallocate(fd, 0, 0, size); err != nil {
		tracer().Debugf("fallocate unsupported (%v), sizing with ftruncate", err)
	}
	return unix.Ftruncate(fd, size)
}
