package kvsafe

import (
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Giulio2002/kvsafe/internal/engine"
	"github.com/Giulio2002/kvsafe/internal/handlemap"
)

// envSignature is the magic number for valid environments
const envSignature uint32 = 0x4B565345 // "KVSE"

// Env is an open environment. It owns the engine handle, the writer slot
// and the table of database handles. All transactions, cursors, databases
// and values it issues become invalid when it closes, and it refuses to
// close while any transaction is live.
type Env struct {
	signature uint32
	cfg       Config
	driver    engine.Driver
	caps      engine.Caps
	eng       engine.Env
	file      string
	keys      []string // process registry keys
	log       *zap.Logger
	metrics   *metrics

	mu     sync.RWMutex
	closed bool
	txns   map[*Txn]struct{} // live transactions, nested included

	writer writerSlot

	// dbiOpenMu serializes OpenDatabase so two transactions never race to
	// open or create the same name.
	dbiOpenMu sync.Mutex
	dbsMu     sync.RWMutex
	dbs       handlemap.Map[*dbEntry]
	names     map[string]engine.DBI
	dbGen     uint64

	// writeEpoch is bumped by every write in the writer chain. Values read
	// through a write transaction are valid only within their epoch.
	writeEpoch atomic.Uint64
}

// Open validates cfg and opens the environment it describes.
//
// Open fails with ErrConfiguration for a bad Config and with
// ErrEnvironment when the engine cannot open the file or the file is
// already open in this process.
func Open(cfg Config) (*Env, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	driver, _ := engine.Lookup(cfg.Engine)
	eflags := cfg.Flags.engineFlags()
	file := driver.DataFile(cfg.Path, eflags)

	log := cfg.Logger.Named("kvsafe").With(
		zap.String("path", cfg.Path),
		zap.String("engine", cfg.Engine),
	)

	keys, ok, owner := reserve(file, cfg.Path)
	if !ok {
		return nil, newError(ErrEnvironment, "open", "%s is already open in this process (via %s)", file, owner)
	}

	eng, err := driver.Open(cfg.Path, engine.Options{
		MaxSize:    int64(cfg.MaxSize),
		MaxDBs:     cfg.MaxDatabases,
		MaxReaders: cfg.MaxReaders,
		Flags:      eflags,
		Mode:       cfg.Mode,
	})
	if err != nil {
		release(keys)
		return nil, translate("open", err, stageOpen)
	}
	keys = claimIdentity(file, cfg.Path, keys)

	m := newMetrics(cfg.Path)
	if err := m.register(cfg.Registerer); err != nil {
		eng.Close()
		release(keys)
		return nil, &Error{Code: ErrConfiguration, Op: "open", Message: "register metrics", Err: err}
	}

	e := &Env{
		signature: envSignature,
		cfg:       cfg,
		driver:    driver,
		caps:      driver.Caps(),
		eng:       eng,
		file:      file,
		keys:      keys,
		log:       log,
		metrics:   m,
		txns:      make(map[*Txn]struct{}),
		names:     make(map[string]engine.DBI),
	}
	log.Info("environment opened",
		zap.Stringer("max-size", cfg.MaxSize),
		zap.Int("max-databases", cfg.MaxDatabases),
		zap.Stringer("flags", cfg.Flags))
	return e, nil
}

// valid returns true if the environment is valid.
func (e *Env) valid() bool {
	return e != nil && e.signature == envSignature
}

func (e *Env) checkOpen(op string) error {
	if !e.valid() {
		return newError(ErrInvalidState, op, "invalid environment")
	}
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return newError(ErrInvalidState, op, "environment is closed")
	}
	return nil
}

// Close closes the environment. It never waits: while any transaction is
// live it fails with ErrStillInUse and the environment stays open. With
// NoSync or MapAsync the data is flushed first. Closing a closed
// environment is a no-op.
func (e *Env) Close() error {
	if !e.valid() {
		return newError(ErrInvalidState, "close", "invalid environment")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	if n := len(e.txns); n > 0 {
		e.log.Warn("refusing to close environment with live transactions", zap.Int("live", n))
		return newError(ErrStillInUse, "close", "%d transactions still live", n)
	}
	e.closed = true

	var err error
	if e.cfg.Flags.lazySync() && e.cfg.Flags&ReadOnly == 0 {
		err = multierr.Append(err, translate("close", e.eng.Sync(true), stageTxn))
	}
	err = multierr.Append(err, translate("close", e.eng.Close(), stageTxn))
	err = multierr.Append(err, e.metrics.unregister())
	release(e.keys)

	e.dbsMu.Lock()
	e.dbs.Clear()
	e.names = nil
	e.dbsMu.Unlock()

	if err != nil {
		e.log.Warn("environment closed with errors", zap.Error(err))
	} else {
		e.log.Info("environment closed")
	}
	return err
}

// Sync flushes data to disk. Without force, engines may skip the flush
// when the environment was opened with MapAsync.
func (e *Env) Sync(force bool) error {
	if err := e.checkOpen("sync"); err != nil {
		return err
	}
	if e.cfg.Flags&ReadOnly != 0 {
		return newError(ErrReadOnly, "sync", "environment is read-only")
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return newError(ErrInvalidState, "sync", "environment is closed")
	}
	return translate("sync", e.eng.Sync(force), stageTxn)
}

// Path returns the path the environment was opened with.
func (e *Env) Path() string { return e.cfg.Path }

// Flags returns the environment flags.
func (e *Env) Flags() EnvFlags { return e.cfg.Flags }

// Engine returns the name of the storage engine.
func (e *Env) Engine() string { return e.cfg.Engine }

// MaxDatabases returns the configured number of named databases.
func (e *Env) MaxDatabases() int { return e.cfg.MaxDatabases }

// LiveTxns returns the number of live transactions, nested ones included.
func (e *Env) LiveTxns() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.txns)
}

func (e *Env) track(t *Txn) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return newError(ErrInvalidState, "begin", "environment is closed")
	}
	e.txns[t] = struct{}{}
	return nil
}

func (e *Env) untrack(t *Txn) {
	e.mu.Lock()
	delete(e.txns, t)
	e.mu.Unlock()
}
