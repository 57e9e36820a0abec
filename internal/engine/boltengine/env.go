// Package boltengine implements the engine boundary on top of bbolt.
//
// Databases map to top-level buckets; the default database lives in a
// reserved bucket. bbolt has no nested transactions and no duplicate or
// custom key orders, so Caps reports none of them.
package boltengine

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/Giulio2002/kvsafe/internal/engine"
)

// Name is the driver name.
const Name = "bolt"

const (
	// DataFileName is the data file name inside an environment directory.
	DataFileName = "data.bolt"

	// mainBucket holds the default database. Database names cannot contain
	// NUL, so it never collides with a named database.
	mainBucket = "\x00main"

	// mainDBI mirrors the MDBX main database handle.
	mainDBI engine.DBI = 1

	// lockTimeout bounds the wait for the file lock held by another process.
	lockTimeout = 5 * time.Second
)

type driver struct{}

func init() {
	engine.Register(driver{})
}

func (driver) Name() string { return Name }

func (driver) Caps() engine.Caps { return engine.Caps{} }

func (driver) DataFile(path string, flags uint) string {
	if flags&engine.NoSubdir != 0 {
		return path
	}
	return filepath.Join(path, DataFileName)
}

func (d driver) Open(path string, opts engine.Options) (engine.Env, error) {
	readOnly := opts.Flags&engine.ReadOnly != 0
	if opts.Flags&engine.NoSubdir == 0 && !readOnly {
		if err := os.MkdirAll(path, opts.Mode|0o700); err != nil {
			return nil, wrap("open", err)
		}
	}

	bopts := &bolt.Options{
		Timeout:         lockTimeout,
		ReadOnly:        readOnly,
		NoSync:          opts.Flags&engine.SafeNoSync != 0,
		NoGrowSync:      opts.Flags&engine.NoMetaSync != 0,
		InitialMmapSize: int(opts.MaxSize),
		FreelistType:    bolt.FreelistMapType,
	}
	db, err := bolt.Open(d.DataFile(path, opts.Flags), opts.Mode, bopts)
	if err != nil {
		return nil, wrap("open", err)
	}

	e := &env{
		db:         db,
		readOnly:   readOnly,
		maxReaders: uint32(opts.MaxReaders),
		maxSize:    opts.MaxSize,
		pageSize:   db.Info().PageSize,
		names:      map[string]engine.DBI{mainBucket: mainDBI},
		buckets:    map[engine.DBI]string{mainDBI: mainBucket},
		next:       mainDBI + 1,
	}
	if !readOnly {
		err := db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists([]byte(mainBucket))
			return err
		})
		if err != nil {
			db.Close()
			return nil, wrap("open", err)
		}
	}
	return e, nil
}

// env tracks the handle numbers assigned to bucket names. Handles are never
// reused within one environment.
type env struct {
	db         *bolt.DB
	readOnly   bool
	maxReaders uint32
	maxSize    int64
	pageSize   int

	mu      sync.Mutex
	names   map[string]engine.DBI
	buckets map[engine.DBI]string
	next    engine.DBI
}

func (e *env) dbiFor(bucket string) engine.DBI {
	e.mu.Lock()
	defer e.mu.Unlock()
	if dbi, ok := e.names[bucket]; ok {
		return dbi
	}
	dbi := e.next
	e.next++
	e.names[bucket] = dbi
	e.buckets[dbi] = bucket
	return dbi
}

func (e *env) bucketName(dbi engine.DBI) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	name, ok := e.buckets[dbi]
	return name, ok
}

func (e *env) BeginTxn(parent engine.Txn, readOnly bool) (engine.Txn, error) {
	if parent != nil {
		return nil, engine.NewError("begin", engine.Incompatible)
	}
	if !readOnly && e.readOnly {
		return nil, engine.NewError("begin", engine.EACCES)
	}
	tx, err := e.db.Begin(!readOnly)
	if err != nil {
		return nil, wrap("begin", err)
	}
	return &txn{env: e, tx: tx}, nil
}

func (e *env) Info(t engine.Txn) (engine.Info, error) {
	var tx *bolt.Tx
	if bt, ok := t.(*txn); ok && bt != nil {
		tx = bt.tx
	} else {
		var err error
		if tx, err = e.db.Begin(false); err != nil {
			return engine.Info{}, wrap("info", err)
		}
		defer tx.Rollback()
	}
	return engine.Info{
		MapSize:    tx.Size(),
		PageSize:   uint32(e.db.Info().PageSize),
		LastTxnID:  uint64(tx.ID()),
		MaxReaders: e.maxReaders,
		NumReaders: uint32(e.db.Stats().OpenTxN),
	}, nil
}

func (e *env) Sync(force bool) error {
	if e.readOnly {
		return engine.NewError("sync", engine.EACCES)
	}
	if err := e.db.Sync(); err != nil {
		return wrap("sync", err)
	}
	return nil
}

func (e *env) Close() error {
	if err := e.db.Close(); err != nil {
		return wrap("close", err)
	}
	return nil
}
