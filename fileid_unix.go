//go:build unix

package kvsafe

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func lookupFileID(path string) (string, bool) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return "", false
	}
	return fmt.Sprintf("inode:%d:%d", uint64(st.Dev), uint64(st.Ino)), true
}

func pageSize() int {
	return unix.Getpagesize()
}
