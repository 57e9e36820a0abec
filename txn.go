package kvsafe

import (
	"bytes"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Giulio2002/kvsafe/internal/engine"
)

// txnSignature is the magic number for valid transactions
const txnSignature uint32 = 0x4B565354 // "KVST"

// Transaction states
const (
	txnActive uint32 = iota
	txnCommitted
	txnAborted
)

// Txn is a transaction. It is either read-only, pinning a snapshot taken at
// begin, or read-write, holding the environment's writer slot (directly or
// through its root when nested).
//
// A Txn is terminated by exactly one Commit or Abort. Abort is a no-op on a
// terminated Txn, so
//
//	txn, err := env.BeginTxn(nil, kvsafe.TxnReadWrite)
//	if err != nil {
//	    return err
//	}
//	defer txn.Abort()
//
// is always safe. A Txn and its cursors must not be used from more than one
// goroutine at a time, and with the mdbx engine a read-write Txn must stay
// on the goroutine that began it.
type Txn struct {
	signature uint32
	env       *Env
	eng       engine.Txn
	parent    *Txn
	child     *Txn
	readOnly  bool
	id        uint64
	state     atomic.Uint32
	cursors   map[*Cursor]struct{}
	log       *zap.Logger
}

// BeginTxn begins a transaction. flags is TxnReadOnly or TxnReadWrite.
//
// With a parent the new transaction is nested: it must be read-write, the
// parent must be an active read-write transaction of the same environment
// without another active child, and the engine must support nesting.
//
// A second top-level read-write transaction fails immediately with
// ErrConcurrency; it never waits for the first to finish.
func (e *Env) BeginTxn(parent *Txn, flags uint) (*Txn, error) {
	const op = "begin"
	if err := e.checkOpen(op); err != nil {
		return nil, err
	}
	if flags&^TxnReadOnly != 0 {
		return nil, newError(ErrConfiguration, op, "unsupported transaction flags 0x%x", flags&^TxnReadOnly)
	}
	readOnly := flags&TxnReadOnly != 0

	t := &Txn{
		signature: txnSignature,
		env:       e,
		parent:    parent,
		readOnly:  readOnly,
		cursors:   make(map[*Cursor]struct{}),
	}

	var engParent engine.Txn
	if parent != nil {
		switch {
		case !parent.valid() || parent.env != e:
			return nil, newError(ErrInvalidState, op, "parent belongs to another environment")
		case !parent.Active():
			return nil, newError(ErrInvalidState, op, "parent transaction is terminated")
		case parent.readOnly:
			return nil, newError(ErrInvalidState, op, "read-only transactions cannot have nested transactions")
		case readOnly:
			return nil, newError(ErrInvalidState, op, "nested transactions must be read-write")
		case !e.caps.NestedTxn:
			return nil, newError(ErrConfiguration, op, "engine %s does not support nested transactions", e.cfg.Engine)
		case parent.child != nil:
			return nil, newError(ErrConcurrency, op, "parent transaction already has an active nested transaction")
		}
		engParent = parent.eng
	} else if !readOnly {
		if e.cfg.Flags&ReadOnly != 0 {
			return nil, newError(ErrReadOnly, op, "environment is read-only")
		}
		if !e.writer.tryAcquire(t) {
			e.metrics.writerConflicts.Inc()
			e.log.Warn("write transaction refused: writer slot taken")
			return nil, newError(ErrConcurrency, op, "another read-write transaction is active")
		}
	}

	if err := e.track(t); err != nil {
		t.releaseWriter()
		return nil, err
	}
	et, err := e.eng.BeginTxn(engParent, readOnly)
	if err != nil {
		e.untrack(t)
		t.releaseWriter()
		return nil, translate(op, err, stageTxn)
	}
	t.eng = et
	t.id = et.ID()
	t.log = e.log.With(zap.Uint64("txn", t.id))
	if parent != nil {
		parent.child = t
	}
	e.metrics.began(readOnly)
	t.log.Debug("transaction begun", zap.Bool("read-only", readOnly), zap.Bool("nested", parent != nil))
	return t, nil
}

// BeginNested begins a read-write transaction nested in t.
func (t *Txn) BeginNested() (*Txn, error) {
	if !t.valid() {
		return nil, newError(ErrInvalidState, "begin", "invalid transaction")
	}
	return t.env.BeginTxn(t, TxnReadWrite)
}

// valid returns true if the transaction handle is valid.
func (t *Txn) valid() bool {
	return t != nil && t.signature == txnSignature
}

// ID returns the engine's snapshot id of the transaction.
func (t *Txn) ID() uint64 { return t.id }

// IsReadOnly reports whether the transaction is read-only.
func (t *Txn) IsReadOnly() bool { return t.readOnly }

// Parent returns the parent of a nested transaction, or nil.
func (t *Txn) Parent() *Txn { return t.parent }

// Env returns the environment of the transaction.
func (t *Txn) Env() *Env { return t.env }

// Active reports whether the transaction is neither committed nor aborted.
func (t *Txn) Active() bool {
	return t.valid() && t.state.Load() == txnActive
}

// check verifies that t may run op now.
func (t *Txn) check(op string, write bool) error {
	if !t.valid() {
		return newError(ErrInvalidState, op, "invalid transaction")
	}
	switch t.state.Load() {
	case txnCommitted:
		return newError(ErrInvalidState, op, "transaction is committed")
	case txnAborted:
		return newError(ErrInvalidState, op, "transaction is aborted")
	}
	if t.child != nil {
		return newError(ErrInvalidState, op, "transaction has an active nested transaction")
	}
	if write && t.readOnly {
		return newError(ErrReadOnly, op, "transaction is read-only")
	}
	return nil
}

// fail translates an engine error. Errors that leave the engine transaction
// unusable abort t before returning.
func (t *Txn) fail(op string, err error, stage errStage) error {
	terr := translate(op, err, stage)
	if IsTxnFatal(terr) {
		t.log.Warn("fatal transaction error, aborting", zap.String("op", op), zap.Error(terr))
		t.Abort()
	}
	return terr
}

// descendsFrom reports whether t is a or nested under a.
func (t *Txn) descendsFrom(a *Txn) bool {
	for x := t; x != nil; x = x.parent {
		if x == a {
			return true
		}
	}
	return false
}

// markWrite invalidates values read through the writer chain.
func (t *Txn) markWrite() {
	t.env.writeEpoch.Add(1)
}

// Get returns the value stored under key. The Value borrows engine memory
// and is valid until t terminates or, for read-write transactions, until
// the next write.
func (t *Txn) Get(db Database, key []byte) (Value, error) {
	const op = "get"
	if err := t.check(op, false); err != nil {
		return Value{}, err
	}
	if _, err := t.resolve(op, db); err != nil {
		return Value{}, err
	}
	v, err := t.eng.Get(db.dbi, key)
	if err != nil {
		return Value{}, t.fail(op, err, stageTxn)
	}
	return t.newValue(v), nil
}

// Put stores val under key. flags is a combination of NoOverwrite,
// NoDupData, Append and AppendDup.
//
// ErrMapFull is fatal: t is aborted before Put returns.
func (t *Txn) Put(db Database, key, val []byte, flags uint) error {
	const op = "put"
	if err := t.check(op, true); err != nil {
		return err
	}
	ent, err := t.resolve(op, db)
	if err != nil {
		return err
	}
	if flags&^txnPutFlags != 0 {
		return newError(ErrConfiguration, op, "unsupported put flags 0x%x", flags&^txnPutFlags)
	}
	if flags&(NoDupData|AppendDup) != 0 && ent.flags&DupSort == 0 {
		return newError(ErrConfiguration, op, "NoDupData and AppendDup need a DupSort database")
	}
	t.markWrite()
	if err := t.eng.Put(db.dbi, key, val, flags); err != nil {
		return t.fail(op, err, stageTxn)
	}
	return nil
}

// Del removes key. In a DupSort database a non-nil val removes only that
// duplicate; nil removes them all. Elsewhere a non-nil val must equal the
// stored value.
func (t *Txn) Del(db Database, key, val []byte) error {
	const op = "del"
	if err := t.check(op, true); err != nil {
		return err
	}
	ent, err := t.resolve(op, db)
	if err != nil {
		return err
	}
	if val != nil && ent.flags&DupSort == 0 {
		// Without duplicates val must match the stored value.
		cur, err := t.eng.Get(db.dbi, key)
		if err != nil {
			return t.fail(op, err, stageTxn)
		}
		if !bytes.Equal(cur, val) {
			return newError(ErrNotFound, op, "value does not match")
		}
		val = nil
	}
	t.markWrite()
	if err := t.eng.Del(db.dbi, key, val); err != nil {
		return t.fail(op, err, stageTxn)
	}
	return nil
}

// Commit commits the transaction. A nested transaction merges its writes
// into its parent; they become durable when the root commits.
//
// Commit fails with ErrInvalidState, leaving t active, while a nested
// transaction is active. If the engine fails to commit, t ends aborted.
//
// With the mdbx engine a read-write Txn must be committed or aborted on the
// goroutine that began it. Commit elsewhere fails with ErrInvalidState and
// leaves t active with its cursors closed.
func (t *Txn) Commit() error {
	const op = "commit"
	if !t.valid() {
		return newError(ErrInvalidState, op, "invalid transaction")
	}
	if t.state.Load() != txnActive {
		return newError(ErrInvalidState, op, "transaction is already terminated")
	}
	if t.child != nil {
		return newError(ErrInvalidState, op, "nested transaction is still active")
	}

	t.closeCursors()
	if err := t.eng.Commit(); err != nil {
		if engine.Code(err) == engine.ThreadMismatch {
			return translate(op, err, stageTxn)
		}
		t.state.Store(txnAborted)
		t.settleDatabases(false)
		t.detach(outcomeAbort)
		terr := translate(op, err, stageTxn)
		t.log.Warn("commit failed, transaction aborted", zap.Error(terr))
		return terr
	}
	t.state.Store(txnCommitted)
	if t.parent != nil {
		// The parent now reads the merged pages.
		t.markWrite()
	}
	t.settleDatabases(true)
	t.detach(outcomeCommit)
	return nil
}

// Abort discards the transaction's writes, aborting any active nested
// transaction first. It never fails and is a no-op on a terminated
// transaction. Like Commit, it must run on the goroutine that began a
// read-write Txn when the engine is mdbx.
func (t *Txn) Abort() {
	if !t.valid() || t.state.Load() != txnActive {
		return
	}
	if t.child != nil {
		t.child.Abort()
	}
	t.closeCursors()
	t.eng.Abort()
	t.state.Store(txnAborted)
	t.settleDatabases(false)
	t.detach(outcomeAbort)
}

// detach unlinks a terminated transaction from its parent, the writer slot
// and the environment.
func (t *Txn) detach(outcome string) {
	if t.parent != nil {
		t.parent.child = nil
	}
	t.releaseWriter()
	t.env.untrack(t)
	t.env.metrics.ended(t.readOnly, outcome)
	t.log.Debug("transaction ended", zap.String("outcome", outcome))
}

func (t *Txn) releaseWriter() {
	if t.parent == nil && !t.readOnly {
		t.env.writer.release(t)
	}
}

func (t *Txn) closeCursors() {
	for c := range t.cursors {
		c.close()
	}
}
