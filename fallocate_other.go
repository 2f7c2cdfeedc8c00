//go:build !linux && !darwin

package ngramstore

import "os"

// fallocateFile sets the length of a values file. Disk blocks are not
// reserved on these platforms.
func fallocateFile(file *os.File, size int64) error {
	return file.Truncate(size)
}
