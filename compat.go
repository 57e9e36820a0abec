package kvsafe

// TxnOp is a function that operates on a transaction.
// This is the callback type for View, Update, RunTxn and Sub.
type TxnOp func(txn *Txn) error

// View executes a read-only transaction.
// The transaction is committed when fn returns nil and aborted otherwise.
func (e *Env) View(fn TxnOp) error {
	return e.RunTxn(TxnReadOnly, fn)
}

// Update executes a read-write transaction.
// The transaction is committed when fn returns nil and aborted otherwise.
func (e *Env) Update(fn TxnOp) error {
	return e.RunTxn(TxnReadWrite, fn)
}

// RunTxn runs fn in a top-level transaction with the given flags. If fn
// panics the transaction is aborted and the panic continues.
func (e *Env) RunTxn(flags uint, fn TxnOp) error {
	txn, err := e.BeginTxn(nil, flags)
	if err != nil {
		return err
	}
	return txn.run(fn)
}

// Sub runs fn in a nested transaction of t. Its writes are merged into t
// when fn returns nil and discarded otherwise.
func (t *Txn) Sub(fn TxnOp) error {
	sub, err := t.BeginNested()
	if err != nil {
		return err
	}
	return sub.run(fn)
}

func (t *Txn) run(fn TxnOp) error {
	defer t.Abort()
	if err := fn(t); err != nil {
		return err
	}
	if !t.Active() {
		// fn terminated the transaction itself.
		return nil
	}
	return t.Commit()
}
