// Package engine defines the boundary between kvsafe and the embedded
// storage engines it wraps. Every call is synchronous and reports failures as
// *Error values carrying MDBX-compatible status codes, so the layer above has
// exactly one place to translate them.
//
// Drivers register themselves by name from their package init.
package engine

import (
	"os"
	"sort"
	"sync"
)

// DBI is an engine database handle.
type DBI uint32

// Options configures Driver.Open. Flags use the Env* constants.
type Options struct {
	MaxSize    int64
	MaxDBs     int
	MaxReaders int
	Flags      uint
	Mode       os.FileMode
}

// Caps describes what a driver can do. Requests outside these are rejected
// before they reach the engine.
type Caps struct {
	NestedTxn  bool
	DupSort    bool
	IntegerKey bool
	ReverseKey bool
	// ThreadBoundWriter means a write transaction must stay on the OS thread
	// that began it.
	ThreadBoundWriter bool
}

// Driver opens environments of one engine kind.
type Driver interface {
	Name() string
	Caps() Caps
	// DataFile returns the path of the file backing an environment opened
	// at path with the given flags.
	DataFile(path string, flags uint) string
	Open(path string, opts Options) (Env, error)
}

// Env is an open engine environment.
type Env interface {
	BeginTxn(parent Txn, readOnly bool) (Txn, error)
	Info(txn Txn) (Info, error)
	Sync(force bool) error
	Close() error
}

// Txn is an engine transaction. A Txn is terminated by exactly one call to
// Commit or Abort.
type Txn interface {
	ID() uint64
	OpenDB(name string, flags uint) (DBI, error)
	DBFlags(dbi DBI) (uint, error)
	Get(dbi DBI, key []byte) ([]byte, error)
	Put(dbi DBI, key, val []byte, flags uint) error
	// Del removes key. A nil val removes every duplicate.
	Del(dbi DBI, key, val []byte) error
	Drop(dbi DBI, del bool) error
	Stat(dbi DBI) (Stat, error)
	OpenCursor(dbi DBI) (Cursor, error)
	Commit() error
	Abort()
}

// Cursor is an engine cursor bound to one Txn and DBI.
type Cursor interface {
	Get(key, val []byte, op Op) ([]byte, []byte, error)
	Put(key, val []byte, flags uint) error
	Del(flags uint) error
	Count() (uint64, error)
	Close()
}

// Stat is a B-tree statistics snapshot.
type Stat struct {
	PageSize      uint32
	Depth         uint32
	BranchPages   uint64
	LeafPages     uint64
	OverflowPages uint64
	Entries       uint64
}

// Info describes an environment.
type Info struct {
	MapSize    int64
	PageSize   uint32
	LastTxnID  uint64
	MaxReaders uint32
	NumReaders uint32
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// Register makes a driver available by name. It panics on duplicates.
func Register(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, dup := drivers[d.Name()]; dup {
		panic("engine: Register called twice for driver " + d.Name())
	}
	drivers[d.Name()] = d
}

// Lookup returns the driver registered under name.
func Lookup(name string) (Driver, bool) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[name]
	return d, ok
}

// Drivers returns the sorted names of all registered drivers.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
