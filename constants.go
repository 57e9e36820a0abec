package kvsafe

import (
	"fmt"
	"strings"

	"github.com/Giulio2002/kvsafe/internal/engine"
)

// Limits
const (
	// MinMapSize is the smallest accepted Config.MaxSize.
	MinMapSize = 64 << 10

	// DefaultMapSize is the Config.MaxSize used by DefaultConfig.
	DefaultMapSize = 1 << 30

	// DefaultMaxReaders is the Config.MaxReaders used by DefaultConfig.
	DefaultMaxReaders = 126

	// MaxDatabasesLimit bounds Config.MaxDatabases.
	MaxDatabasesLimit = 32765
)

// EnvFlags are environment open flags.
type EnvFlags uint

// Environment flags
const (
	// NoSync skips the fsync after commit. A crash may lose or corrupt the
	// last transactions.
	NoSync EnvFlags = 1 << iota

	// ReadOnly opens the environment for reading only. Write transactions
	// fail with ErrReadOnly.
	ReadOnly

	// NoMemInit leaves unused parts of new pages uninitialized.
	NoMemInit

	// MapAsync flushes asynchronously. The data file stays consistent after
	// a crash but recent commits may be lost.
	MapAsync

	// NoMetaSync defers the meta page sync to the next commit.
	NoMetaSync

	// WriteMap writes through a writable memory map.
	WriteMap

	// NoReadahead disables OS readahead on the map.
	NoReadahead

	// NoSubdir treats Path as the data file itself rather than a directory.
	NoSubdir
)

var envFlagNames = []struct {
	flag EnvFlags
	name string
}{
	{NoSync, "no-sync"},
	{ReadOnly, "read-only"},
	{NoMemInit, "no-mem-init"},
	{MapAsync, "map-async"},
	{NoMetaSync, "no-meta-sync"},
	{WriteMap, "write-map"},
	{NoReadahead, "no-readahead"},
	{NoSubdir, "no-subdir"},
}

const allEnvFlags = NoSync | ReadOnly | NoMemInit | MapAsync | NoMetaSync | WriteMap | NoReadahead | NoSubdir

// lazySync reports whether commits may leave data unsynced.
func (f EnvFlags) lazySync() bool {
	return f&(NoSync|MapAsync) != 0
}

func (f EnvFlags) engineFlags() uint {
	var out uint
	if f&NoSync != 0 {
		out |= engine.UtterlyNoSync
	}
	if f&MapAsync != 0 {
		out |= engine.SafeNoSync
	}
	if f&ReadOnly != 0 {
		out |= engine.ReadOnly
	}
	if f&NoMemInit != 0 {
		out |= engine.NoMemInit
	}
	if f&NoMetaSync != 0 {
		out |= engine.NoMetaSync
	}
	if f&WriteMap != 0 {
		out |= engine.WriteMap
	}
	if f&NoReadahead != 0 {
		out |= engine.NoReadahead
	}
	if f&NoSubdir != 0 {
		out |= engine.NoSubdir
	}
	return out
}

func (f EnvFlags) String() string {
	if f == 0 {
		return ""
	}
	var parts []string
	for _, fn := range envFlagNames {
		if f&fn.flag != 0 {
			parts = append(parts, fn.name)
		}
	}
	if rest := f &^ allEnvFlags; rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint(rest)))
	}
	return strings.Join(parts, "|")
}

// MarshalText encodes f as "name|name".
func (f EnvFlags) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText parses "name|name". Spaces around names are ignored.
func (f *EnvFlags) UnmarshalText(text []byte) error {
	var out EnvFlags
	for _, part := range strings.Split(string(text), "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		found := false
		for _, fn := range envFlagNames {
			if fn.name == part {
				out |= fn.flag
				found = true
				break
			}
		}
		if !found {
			return newError(ErrConfiguration, "flags", "unknown environment flag %q", part)
		}
	}
	*f = out
	return nil
}

// Database flags. Everything but Create is fixed when the database is
// created and must match on every later open.
const (
	// DBDefaults opens an existing database with default ordering.
	DBDefaults uint = 0

	// ReverseKey compares keys from the last byte to the first.
	ReverseKey = engine.ReverseKey

	// DupSort allows sorted duplicate values per key.
	DupSort = engine.DupSort

	// IntegerKey treats keys as native-endian unsigned integers.
	IntegerKey = engine.IntegerKey

	// DupFixed marks all duplicates of a DupSort database as the same size.
	DupFixed = engine.DupFixed

	// IntegerDup treats duplicates as native-endian unsigned integers.
	IntegerDup = engine.IntegerDup

	// ReverseDup compares duplicates from the last byte to the first.
	ReverseDup = engine.ReverseDup

	// Create creates the database if it is missing.
	Create = engine.Create
)

const dbOrderFlags = engine.DBOrderFlags

// Put flags
const (
	// Upsert inserts or replaces.
	Upsert uint = 0

	// NoOverwrite fails with ErrKeyExists if the key is present.
	NoOverwrite = engine.NoOverwrite

	// NoDupData fails with ErrKeyExists if the key/value pair is present
	// (DupSort only).
	NoDupData = engine.NoDupData

	// Current replaces the value at the cursor position (Cursor.Put only).
	Current = engine.Current

	// Append appends at the end of the database. Keys must be ascending.
	Append = engine.Append

	// AppendDup appends a duplicate at the end of the key's values.
	AppendDup = engine.AppendDup
)

const txnPutFlags = NoOverwrite | NoDupData | Append | AppendDup

// Transaction flags
const (
	// TxnReadWrite begins a read-write transaction.
	TxnReadWrite uint = 0

	// TxnReadOnly begins a read-only snapshot transaction.
	TxnReadOnly uint = 0x20000
)
