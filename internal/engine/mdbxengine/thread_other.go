//go:build cgo && !linux

package mdbxengine

// threadID returns 0 where thread ids are unavailable, which disables the
// owner check and leaves it to libmdbx.
func threadID() int { return 0 }
