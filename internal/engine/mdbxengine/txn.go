//go:build cgo

package mdbxengine

import (
	"runtime"

	"github.com/erigontech/mdbx-go/mdbx"

	"github.com/Giulio2002/kvsafe/internal/engine"
)

// libmdbx database flags that mdbx-go does not export.
const (
	mdbxIntegerKey uint = 0x08 // MDBX_INTEGERKEY
	mdbxIntegerDup uint = 0x20 // MDBX_INTEGERDUP
)

var dbFlags = []struct {
	from, to uint
}{
	{engine.ReverseKey, mdbx.ReverseKey},
	{engine.DupSort, mdbx.DupSort},
	{engine.IntegerKey, mdbxIntegerKey},
	{engine.DupFixed, mdbx.DupFixed},
	{engine.IntegerDup, mdbxIntegerDup},
	{engine.ReverseDup, mdbx.ReverseDup},
	{engine.Create, mdbx.Create},
}

var putFlags = []struct {
	from, to uint
}{
	{engine.NoOverwrite, mdbx.NoOverwrite},
	{engine.NoDupData, mdbx.NoDupData},
	{engine.Current, mdbx.Current},
	{engine.Append, mdbx.Append},
	{engine.AppendDup, mdbx.AppendDup},
}

func mapFlags(flags uint, table []struct{ from, to uint }) uint {
	var out uint
	for _, f := range table {
		if flags&f.from != 0 {
			out |= f.to
		}
	}
	return out
}

// unmapFlags converts engine-reported database flags back, dropping
// anything that is not an ordering flag.
func unmapFlags(flags uint) uint {
	var out uint
	for _, f := range dbFlags {
		if f.from != engine.Create && flags&f.to != 0 {
			out |= f.from
		}
	}
	return out
}

type txn struct {
	env    *env
	txn    *mdbx.Txn
	locked bool
	// tid is the OS thread a write transaction is bound to.
	tid int
}

func (t *txn) ID() uint64 { return t.txn.ID() }

func (t *txn) OpenDB(name string, flags uint) (engine.DBI, error) {
	var (
		dbi mdbx.DBI
		err error
	)
	if name == "" {
		dbi, err = t.txn.OpenRoot(mapFlags(flags&^engine.Create, dbFlags))
	} else {
		dbi, err = t.txn.OpenDBISimple(name, mapFlags(flags, dbFlags))
	}
	if err != nil {
		return 0, wrap("open-db", err)
	}
	return engine.DBI(dbi), nil
}

func (t *txn) DBFlags(dbi engine.DBI) (uint, error) {
	flags, err := t.txn.Flags(mdbx.DBI(dbi))
	if err != nil {
		return 0, wrap("db-flags", err)
	}
	return unmapFlags(flags), nil
}

func (t *txn) Get(dbi engine.DBI, key []byte) ([]byte, error) {
	v, err := t.txn.Get(mdbx.DBI(dbi), key)
	if err != nil {
		return nil, wrap("get", err)
	}
	return v, nil
}

func (t *txn) Put(dbi engine.DBI, key, val []byte, flags uint) error {
	if err := t.txn.Put(mdbx.DBI(dbi), key, val, mapFlags(flags, putFlags)); err != nil {
		return wrap("put", err)
	}
	return nil
}

func (t *txn) Del(dbi engine.DBI, key, val []byte) error {
	if err := t.txn.Del(mdbx.DBI(dbi), key, val); err != nil {
		return wrap("del", err)
	}
	return nil
}

func (t *txn) Drop(dbi engine.DBI, del bool) error {
	if err := t.txn.Drop(mdbx.DBI(dbi), del); err != nil {
		return wrap("drop", err)
	}
	return nil
}

func (t *txn) Stat(dbi engine.DBI) (engine.Stat, error) {
	st, err := t.txn.StatDBI(mdbx.DBI(dbi))
	if err != nil {
		return engine.Stat{}, wrap("stat", err)
	}
	return engine.Stat{
		PageSize:      t.env.pageSize(),
		Depth:         uint32(st.Depth),
		BranchPages:   uint64(st.BranchPages),
		LeafPages:     uint64(st.LeafPages),
		OverflowPages: uint64(st.OverflowPages),
		Entries:       uint64(st.Entries),
	}, nil
}

func (t *txn) OpenCursor(dbi engine.DBI) (engine.Cursor, error) {
	c, err := t.txn.OpenCursor(mdbx.DBI(dbi))
	if err != nil {
		return nil, wrap("cursor", err)
	}
	return &cursor{c: c}, nil
}

// Commit fails with ThreadMismatch and leaves the transaction open when
// called off the thread that began it.
func (t *txn) Commit() error {
	if !t.onOwnThread() {
		return engine.NewError("commit", engine.ThreadMismatch)
	}
	defer t.unlock()
	if _, err := t.txn.Commit(); err != nil {
		return wrap("commit", err)
	}
	return nil
}

// Abort off the owning thread is refused by libmdbx; the thread lock is
// left alone so another goroutine's thread is never released.
func (t *txn) Abort() {
	if !t.onOwnThread() {
		return
	}
	defer t.unlock()
	t.txn.Abort()
}

func (t *txn) onOwnThread() bool {
	return t.tid == 0 || t.tid == threadID()
}

func (t *txn) unlock() {
	if t.locked {
		t.locked = false
		runtime.UnlockOSThread()
	}
}
