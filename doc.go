// Package kvsafe is a safe layer over embedded memory-mapped transactional
// key-value engines. It owns the rules the engines leave to the caller:
// one writer at a time, transactions that always end, cursors and values
// that cannot outlive their transaction, database handles that survive only
// committed opens, and errors sorted into a small fixed set of kinds.
//
// Two engines are available: "mdbx" (libmdbx, needs cgo) and "bolt"
// (bbolt, pure Go). bolt has no nested transactions and no duplicate or
// custom key orders.
//
// Basic usage:
//
//	env, err := kvsafe.Open(kvsafe.DefaultConfig("/path/to/db"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer env.Close()
//
//	err = env.Update(func(txn *kvsafe.Txn) error {
//	    db, err := txn.OpenDatabase("users", kvsafe.Create)
//	    if err != nil {
//	        return err
//	    }
//	    return txn.Put(db, []byte("alice"), []byte("admin"), 0)
//	})
//
//	err = env.View(func(txn *kvsafe.Txn) error {
//	    db, err := txn.OpenDatabase("users", 0)
//	    if err != nil {
//	        return err
//	    }
//	    v, err := txn.Get(db, []byte("alice"))
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(v) // valid only inside this transaction
//	    return nil
//	})
//
// Errors carry an ErrorCode and match the sentinels with errors.Is:
//
//	if errors.Is(err, kvsafe.ErrNotFoundError) {
//	    // missing key
//	}
package kvsafe
