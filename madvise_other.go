//go:build !linux

package ngramstore

// prefaultRegion is a no-op on non-Linux platforms.
func prefaultRegion(data []byte) {}

// adviseRandom is a no-op on non-Linux platforms.
func adviseRandom(data []byte) {}
