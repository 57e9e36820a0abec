package kvsafe

import "sync/atomic"

// writerSlot is the single-writer token of an Env. A top-level read-write
// transaction holds it from begin to commit or abort; nested transactions
// run under their root's claim. Acquisition never waits.
type writerSlot struct {
	holder atomic.Pointer[Txn]
}

func (w *writerSlot) tryAcquire(t *Txn) bool {
	return w.holder.CompareAndSwap(nil, t)
}

func (w *writerSlot) release(t *Txn) {
	w.holder.CompareAndSwap(t, nil)
}

func (w *writerSlot) owner() *Txn {
	return w.holder.Load()
}
