//go:build darwin

package ngramstore

import (
	"os"

	"golang.org/x/sys/unix"
)

// fallocateFile reserves size bytes for a values file with F_PREALLOCATE,
// then sets the file length, which F_PREALLOCATE leaves unchanged.
func fallocateFile(file *os.File, size int64) error {
	store := unix.Fstore_t{
		Flags:   unix.F_ALLOCATEALL,
		Posmode: unix.F_PEOFPOSMODE,
		Length:  size,
	}
	if err := unix.FcntlFstore(file.Fd(), unix.F_PREALLOCATE, &store); err != nil {
		tracer().Debugf("F_PREALLOCATE failed (%v), sizing with ftruncate", err)
	}
	return unix.Ftruncate(int(file.Fd()), size)
}
