package kvsafe

// Stat describes the B-tree of one database.
type Stat struct {
	PageSize      uint32 // Size of a database page
	Depth         uint32 // Depth (height) of the B-tree
	BranchPages   uint64 // Number of internal (non-leaf) pages
	LeafPages     uint64 // Number of leaf pages
	OverflowPages uint64 // Number of overflow pages
	Entries       uint64 // Number of data items
}

// Info describes an open environment.
type Info struct {
	MapSize    int64  // Size of the data memory map
	PageSize   uint32 // Database page size
	LastTxnID  uint64 // ID of the last committed transaction
	MaxReaders uint32 // Max reader slots in the environment
	NumReaders uint32 // Number of reader slots in use
	Path       string
	Engine     string
}

// Stat returns statistics for db as seen by t.
func (t *Txn) Stat(db Database) (Stat, error) {
	const op = "stat"
	if err := t.check(op, false); err != nil {
		return Stat{}, err
	}
	if _, err := t.resolve(op, db); err != nil {
		return Stat{}, err
	}
	st, err := t.eng.Stat(db.dbi)
	if err != nil {
		return Stat{}, t.fail(op, err, stageTxn)
	}
	return Stat(st), nil
}

// Stat returns statistics for the default database from a fresh snapshot.
func (e *Env) Stat() (Stat, error) {
	var st Stat
	err := e.View(func(txn *Txn) error {
		db, err := txn.OpenDatabase("", 0)
		if err != nil {
			return err
		}
		st, err = txn.Stat(db)
		return err
	})
	return st, err
}

// DatabaseStat returns statistics for db from a fresh snapshot.
func (e *Env) DatabaseStat(db Database) (Stat, error) {
	var st Stat
	err := e.View(func(txn *Txn) (err error) {
		st, err = txn.Stat(db)
		return err
	})
	return st, err
}

// Info returns information about the environment from a fresh snapshot.
func (e *Env) Info() (Info, error) {
	var info Info
	err := e.View(func(txn *Txn) error {
		ei, err := e.eng.Info(txn.eng)
		if err != nil {
			return translate("info", err, stageTxn)
		}
		info = Info{
			MapSize:    ei.MapSize,
			PageSize:   ei.PageSize,
			LastTxnID:  ei.LastTxnID,
			MaxReaders: ei.MaxReaders,
			NumReaders: ei.NumReaders,
			Path:       e.cfg.Path,
			Engine:     e.cfg.Engine,
		}
		return nil
	})
	return info, err
}
