//go:build cgo

package mdbxengine

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/erigontech/mdbx-go/mdbx"

	"github.com/Giulio2002/kvsafe/internal/engine"
)

// DataFileName is the data file name inside an environment directory.
const DataFileName = "mdbx.dat"

type driver struct{}

func init() {
	engine.Register(driver{})
}

func (driver) Name() string { return Name }

func (driver) Caps() engine.Caps {
	return engine.Caps{
		NestedTxn:         true,
		DupSort:           true,
		IntegerKey:        true,
		ReverseKey:        true,
		ThreadBoundWriter: true,
	}
}

func (driver) DataFile(path string, flags uint) string {
	if flags&engine.NoSubdir != 0 {
		return path
	}
	return filepath.Join(path, DataFileName)
}

var envFlags = []struct {
	from, to uint
}{
	{engine.NoSubdir, mdbx.NoSubdir},
	{engine.ReadOnly, mdbx.Readonly},
	{engine.WriteMap, mdbx.WriteMap},
	{engine.NoReadahead, mdbx.NoReadahead},
	{engine.NoMemInit, mdbx.NoMemInit},
	{engine.NoMetaSync, mdbx.NoMetaSync},
	{engine.SafeNoSync, mdbx.SafeNoSync},
	{engine.UtterlyNoSync, mdbx.UtterlyNoSync},
}

func toEnvFlags(flags uint) uint {
	var out uint
	for _, f := range envFlags {
		if flags&f.from == f.from {
			out |= f.to
		}
	}
	return out
}

func (d driver) Open(path string, opts engine.Options) (engine.Env, error) {
	readOnly := opts.Flags&engine.ReadOnly != 0
	if opts.Flags&engine.NoSubdir == 0 && !readOnly {
		if err := os.MkdirAll(path, opts.Mode|0o700); err != nil {
			return nil, wrap("open", err)
		}
	}

	me, err := mdbx.NewEnv(mdbx.Label("kvsafe"))
	if err != nil {
		return nil, wrap("open", err)
	}
	if err := me.SetOption(mdbx.OptMaxDB, uint64(opts.MaxDBs)); err != nil {
		me.Close()
		return nil, wrap("open", err)
	}
	if opts.MaxReaders > 0 {
		if err := me.SetOption(mdbx.OptMaxReaders, uint64(opts.MaxReaders)); err != nil {
			me.Close()
			return nil, wrap("open", err)
		}
	}
	if !readOnly {
		if err := me.SetGeometry(-1, -1, int(opts.MaxSize), -1, -1, -1); err != nil {
			me.Close()
			return nil, wrap("open", err)
		}
	}

	flags := toEnvFlags(opts.Flags)
	if !readOnly {
		flags |= mdbx.Create
	}
	if err := me.Open(path, flags, opts.Mode); err != nil {
		me.Close()
		return nil, wrap("open", err)
	}
	return &env{env: me, readOnly: readOnly}, nil
}

type env struct {
	env      *mdbx.Env
	readOnly bool
}

func (e *env) BeginTxn(parent engine.Txn, readOnly bool) (engine.Txn, error) {
	var flags uint
	if readOnly {
		flags = mdbx.Readonly
	}
	var ptxn *mdbx.Txn
	if parent != nil {
		p, ok := parent.(*txn)
		if !ok {
			return nil, engine.NewError("begin", engine.BadTxn)
		}
		ptxn = p.txn
	}

	// The writer lock is owned by the OS thread; nested transactions run on
	// the thread their root already holds.
	locked := !readOnly && parent == nil
	if locked {
		runtime.LockOSThread()
	}
	mt, err := e.env.BeginTxn(ptxn, flags)
	if err != nil {
		if locked {
			runtime.UnlockOSThread()
		}
		return nil, wrap("begin", err)
	}
	t := &txn{env: e, txn: mt, locked: locked}
	if !readOnly {
		t.tid = threadID()
	}
	return t, nil
}

func (e *env) Info(t engine.Txn) (engine.Info, error) {
	var mt *mdbx.Txn
	if tt, ok := t.(*txn); ok && tt != nil {
		mt = tt.txn
	}
	info, err := e.env.Info(mt)
	if err != nil {
		return engine.Info{}, wrap("info", err)
	}
	return engine.Info{
		MapSize:    int64(info.MapSize),
		PageSize:   uint32(info.PageSize),
		LastTxnID:  uint64(info.LastTxnID),
		MaxReaders: uint32(info.MaxReaders),
		NumReaders: uint32(info.NumReaders),
	}, nil
}

func (e *env) pageSize() uint32 {
	info, err := e.env.Info(nil)
	if err != nil {
		return 0
	}
	return uint32(info.PageSize)
}

func (e *env) Sync(force bool) error {
	if err := e.env.Sync(force, false); err != nil {
		return wrap("sync", err)
	}
	return nil
}

func (e *env) Close() error {
	e.env.Close()
	return nil
}
