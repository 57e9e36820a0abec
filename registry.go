package kvsafe

import (
	"path/filepath"
	"sync"
)

// The process-wide registry of open data files. Two Env values over the same
// file would each assume they own the writer lock and the mapping, so Open
// refuses the second one.
//
// A file is known by its cleaned absolute path and, once it exists, by its
// device and inode. Both keys are held so that a second open through a
// symlink or hard link is caught.
var registry = struct {
	sync.Mutex
	held map[string]string // key -> path of the owning Env
}{held: make(map[string]string)}

func pathKey(file string) string {
	abs, err := filepath.Abs(file)
	if err != nil {
		abs = file
	}
	return "path:" + filepath.Clean(abs)
}

func fileKeys(file string) []string {
	keys := []string{pathKey(file)}
	if id, ok := lookupFileID(file); ok {
		keys = append(keys, id)
	}
	return keys
}

// reserve claims every key of file. It fails with the owner's path if any
// key is already held.
func reserve(file, owner string) ([]string, bool, string) {
	keys := fileKeys(file)
	registry.Lock()
	defer registry.Unlock()
	for _, k := range keys {
		if other, ok := registry.held[k]; ok {
			return nil, false, other
		}
	}
	for _, k := range keys {
		registry.held[k] = owner
	}
	return keys, true, ""
}

// claimIdentity adds the inode key of a file created by the engine after
// reserve ran.
func claimIdentity(file, owner string, keys []string) []string {
	id, ok := lookupFileID(file)
	if !ok {
		return keys
	}
	for _, k := range keys {
		if k == id {
			return keys
		}
	}
	registry.Lock()
	defer registry.Unlock()
	if _, taken := registry.held[id]; taken {
		return keys
	}
	registry.held[id] = owner
	return append(keys, id)
}

func release(keys []string) {
	registry.Lock()
	defer registry.Unlock()
	for _, k := range keys {
		delete(registry.held, k)
	}
}
