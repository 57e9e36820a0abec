package kvsafe

import (
	"strings"

	"go.uber.org/zap"

	"github.com/Giulio2002/kvsafe/internal/engine"
)

// Database is a handle to a named key/value namespace of an Env. It is a
// small value: copy it freely and pass it to any later transaction of the
// same environment.
//
// A handle stops being valid when the database is dropped, when the
// environment closes, or when the transaction that created it aborts.
// Using it then fails with ErrInvalidState.
type Database struct {
	env   *Env
	dbi   engine.DBI
	gen   uint64
	name  string
	flags uint
}

// Name returns the database name; "" is the default database.
func (db Database) Name() string { return db.name }

// Flags returns the ordering flags the database was created with.
func (db Database) Flags() uint { return db.flags }

// dbEntry is the environment's record of an open database handle.
type dbEntry struct {
	name  string
	flags uint
	gen   uint64
	// owner is the write transaction that opened or created the handle and
	// has not committed yet. Only it and its descendants may use the handle.
	owner   *Txn
	created bool
}

func (e *Env) checkDBFlags(op string, flags uint) error {
	if flags&^(dbOrderFlags|Create) != 0 {
		return newError(ErrConfiguration, op, "unsupported database flags 0x%x", flags&^(dbOrderFlags|Create))
	}
	dup := flags & (DupFixed | IntegerDup | ReverseDup)
	if dup != 0 && flags&DupSort == 0 {
		return newError(ErrConfiguration, op, "DupFixed, IntegerDup and ReverseDup need DupSort")
	}
	switch {
	case flags&DupSort != 0 && !e.caps.DupSort:
		return newError(ErrConfiguration, op, "engine %s does not support duplicate keys", e.cfg.Engine)
	case flags&IntegerKey != 0 && !e.caps.IntegerKey:
		return newError(ErrConfiguration, op, "engine %s does not support integer keys", e.cfg.Engine)
	case flags&ReverseKey != 0 && !e.caps.ReverseKey:
		return newError(ErrConfiguration, op, "engine %s does not support reverse keys", e.cfg.Engine)
	}
	return nil
}

// OpenDatabase opens the database called name; "" is the default database,
// which always exists. With Create a missing database is created, which
// needs a read-write transaction; the creation is undone if the
// transaction aborts.
//
// Opening an existing database with ordering flags other than the ones it
// was created with fails with ErrNameConflict.
func (t *Txn) OpenDatabase(name string, flags uint) (Database, error) {
	const op = "open-database"
	if err := t.check(op, false); err != nil {
		return Database{}, err
	}
	if strings.IndexByte(name, 0) >= 0 {
		return Database{}, newError(ErrConfiguration, op, "database name contains NUL")
	}
	e := t.env
	if err := e.checkDBFlags(op, flags); err != nil {
		return Database{}, err
	}
	order := flags & dbOrderFlags

	e.dbiOpenMu.Lock()
	defer e.dbiOpenMu.Unlock()

	if db, ok, err := t.cachedDatabase(op, name, flags); ok || err != nil {
		return db, err
	}
	if name != "" && e.namedDatabases() >= e.cfg.MaxDatabases {
		return Database{}, newError(ErrConfiguration, op, "max databases (%d) reached", e.cfg.MaxDatabases)
	}

	created := false
	dbi, err := t.eng.OpenDB(name, order)
	if err == nil {
		err = t.visible(dbi)
	}
	if err != nil {
		if engine.Code(err) != engine.NotFound || flags&Create == 0 {
			return Database{}, t.fail(op, err, stageOpenDB)
		}
		if t.readOnly {
			return Database{}, newError(ErrReadOnly, op, "cannot create database %q in a read-only transaction", name)
		}
		t.markWrite()
		if dbi, err = t.eng.OpenDB(name, order|Create); err != nil {
			return Database{}, t.fail(op, err, stageOpenDB)
		}
		created = true
	}
	actual, err := t.eng.DBFlags(dbi)
	if err != nil {
		return Database{}, t.fail(op, err, stageOpenDB)
	}
	if actual != order {
		return Database{}, newError(ErrNameConflict, op, "database %q has flags 0x%x, not 0x%x", name, actual, order)
	}

	ent := &dbEntry{name: name, flags: order, created: created}
	if !t.readOnly {
		ent.owner = t
	}
	e.dbsMu.Lock()
	if old, ok := e.dbs.Get(uint32(dbi)); ok {
		if old.owner != nil && !t.descendsFrom(old.owner) {
			e.dbsMu.Unlock()
			return Database{}, newError(ErrNotFound, op, "database %q not found", name)
		}
		if e.names[old.name] == dbi {
			delete(e.names, old.name)
		}
	}
	e.dbGen++
	ent.gen = e.dbGen
	e.dbs.Set(uint32(dbi), ent)
	e.names[name] = dbi
	e.dbsMu.Unlock()

	if created {
		t.log.Info("database created", zap.String("database", name))
	}
	return Database{env: e, dbi: dbi, gen: ent.gen, name: name, flags: order}, nil
}

// visible reports whether dbi exists in t's snapshot. Some engines hand out
// handles for databases another transaction created and has not committed.
func (t *Txn) visible(dbi engine.DBI) error {
	_, err := t.eng.Stat(dbi)
	switch engine.Code(err) {
	case engine.Success:
		return nil
	case engine.BadDBI, engine.NotFound:
		return engine.NewError("open-database", engine.NotFound)
	}
	return err
}

// cachedDatabase returns the handle already in the table for name, if t may
// use it.
func (t *Txn) cachedDatabase(op, name string, flags uint) (Database, bool, error) {
	order := flags & dbOrderFlags
	e := t.env
	e.dbsMu.Lock()
	defer e.dbsMu.Unlock()
	dbi, ok := e.names[name]
	if !ok {
		return Database{}, false, nil
	}
	ent, ok := e.dbs.Get(uint32(dbi))
	if !ok {
		return Database{}, false, nil
	}
	if ent.owner != nil && !t.descendsFrom(ent.owner) {
		if ent.created {
			// Not committed yet: t cannot see it.
			if flags&Create != 0 && t.readOnly {
				return Database{}, false, newError(ErrReadOnly, op, "cannot create database %q in a read-only transaction", name)
			}
			return Database{}, false, newError(ErrNotFound, op, "database %q not found", name)
		}
		// It exists in storage; the handle no longer needs an owner.
		ent.owner = nil
	}
	if ent.flags != order {
		return Database{}, false, newError(ErrNameConflict, op, "database %q has flags 0x%x, not 0x%x", name, ent.flags, order)
	}
	return Database{env: e, dbi: dbi, gen: ent.gen, name: name, flags: ent.flags}, true, nil
}

func (e *Env) namedDatabases() int {
	e.dbsMu.RLock()
	defer e.dbsMu.RUnlock()
	n := 0
	e.dbs.ForEach(func(_ uint32, ent *dbEntry) {
		if ent.name != "" {
			n++
		}
	})
	return n
}

// resolve checks that db is usable in t.
func (t *Txn) resolve(op string, db Database) (*dbEntry, error) {
	if db.env == nil {
		return nil, newError(ErrInvalidState, op, "zero Database")
	}
	if db.env != t.env {
		return nil, newError(ErrInvalidState, op, "database belongs to another environment")
	}
	e := t.env
	e.dbsMu.RLock()
	defer e.dbsMu.RUnlock()
	ent, ok := e.dbs.Get(uint32(db.dbi))
	if !ok || ent.gen != db.gen {
		return nil, newError(ErrInvalidState, op, "database handle %q is no longer valid", db.name)
	}
	if ent.owner != nil && !t.descendsFrom(ent.owner) {
		return nil, newError(ErrInvalidState, op, "database %q belongs to an uncommitted transaction", db.name)
	}
	return ent, nil
}

// forget removes db's handle from the table.
func (e *Env) forget(db Database) {
	e.dbsMu.Lock()
	defer e.dbsMu.Unlock()
	if ent, ok := e.dbs.Get(uint32(db.dbi)); ok && ent.gen == db.gen {
		e.dbs.Delete(uint32(db.dbi))
		if e.names[ent.name] == db.dbi {
			delete(e.names, ent.name)
		}
	}
}

// settleDatabases hands the handles t owns to its parent on a nested
// commit, releases them on a root commit, and drops them on abort.
func (t *Txn) settleDatabases(committed bool) {
	e := t.env
	e.dbsMu.Lock()
	defer e.dbsMu.Unlock()
	var stale []uint32
	e.dbs.ForEach(func(dbi uint32, ent *dbEntry) {
		if ent.owner != t {
			return
		}
		switch {
		case !committed:
			stale = append(stale, dbi)
		case t.parent != nil:
			ent.owner = t.parent
		default:
			ent.owner = nil
		}
	})
	for _, dbi := range stale {
		ent, _ := e.dbs.Get(dbi)
		if e.names[ent.name] == engine.DBI(dbi) {
			delete(e.names, ent.name)
		}
		e.dbs.Delete(dbi)
	}
}

// DropDatabase deletes every entry of db and the database itself. The
// handle is invalid afterwards, even if t later aborts; reopen the database
// by name in that case. The default database cannot be deleted and is only
// emptied.
func (t *Txn) DropDatabase(db Database) error {
	const op = "drop-database"
	if err := t.check(op, true); err != nil {
		return err
	}
	if _, err := t.resolve(op, db); err != nil {
		return err
	}
	t.markWrite()
	if db.name == "" {
		if err := t.eng.Drop(db.dbi, false); err != nil {
			return t.fail(op, err, stageTxn)
		}
		t.unsetCursors(db.dbi)
		return nil
	}
	for x := t; x != nil; x = x.parent {
		for c := range x.cursors {
			if c.db.dbi == db.dbi {
				c.close()
			}
		}
	}
	if err := t.eng.Drop(db.dbi, true); err != nil {
		return t.fail(op, err, stageTxn)
	}
	t.env.forget(db)
	t.log.Info("database dropped", zap.String("database", db.name))
	return nil
}

// ClearDatabase deletes every entry of db and keeps the database.
func (t *Txn) ClearDatabase(db Database) error {
	const op = "clear-database"
	if err := t.check(op, true); err != nil {
		return err
	}
	if _, err := t.resolve(op, db); err != nil {
		return err
	}
	t.markWrite()
	if err := t.eng.Drop(db.dbi, false); err != nil {
		return t.fail(op, err, stageTxn)
	}
	t.unsetCursors(db.dbi)
	return nil
}

// unsetCursors leaves every cursor on dbi in the writer chain unpositioned
// after the database was emptied.
func (t *Txn) unsetCursors(dbi engine.DBI) {
	for x := t; x != nil; x = x.parent {
		for c := range x.cursors {
			if c.db.dbi == dbi {
				c.state = cursorUnset
				c.deleted = false
			}
		}
	}
}

// DatabaseFlags returns the ordering flags of db.
func (t *Txn) DatabaseFlags(db Database) (uint, error) {
	const op = "database-flags"
	if err := t.check(op, false); err != nil {
		return 0, err
	}
	ent, err := t.resolve(op, db)
	if err != nil {
		return 0, err
	}
	return ent.flags, nil
}

// OpenDatabase opens an existing database in its own read-only
// transaction.
func (e *Env) OpenDatabase(name string, flags uint) (Database, error) {
	var db Database
	err := e.View(func(txn *Txn) (err error) {
		db, err = txn.OpenDatabase(name, flags&^Create)
		return err
	})
	return db, err
}

// CreateDatabase opens name in its own read-write transaction, creating it
// if needed, and commits.
func (e *Env) CreateDatabase(name string, flags uint) (Database, error) {
	var db Database
	err := e.Update(func(txn *Txn) (err error) {
		db, err = txn.OpenDatabase(name, flags|Create)
		return err
	})
	return db, err
}
