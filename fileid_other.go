//go:build !unix

package kvsafe

import "os"

// Without inode numbers the registry falls back to path keys only.
func lookupFileID(string) (string, bool) {
	return "", false
}

func pageSize() int {
	return os.Getpagesize()
}
