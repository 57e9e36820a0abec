package boltengine

import (
	"bytes"

	bolt "go.etcd.io/bbolt"

	"github.com/Giulio2002/kvsafe/internal/engine"
)

type txn struct {
	env *env
	tx  *bolt.Tx
	// writes counts modifications so cursors know when to re-seek.
	writes uint64
	// drops counts bucket deletions so cursors know when to re-resolve.
	drops uint64
	// pending estimates the bytes this transaction adds to the file.
	pending int64
}

func (t *txn) ID() uint64 { return uint64(t.tx.ID()) }

// bucket returns the bucket behind dbi. The default database may be absent
// in a read-only environment whose file was never written; it then reads as
// empty.
func (t *txn) bucket(op string, dbi engine.DBI) (*bolt.Bucket, error) {
	name, ok := t.env.bucketName(dbi)
	if !ok {
		return nil, engine.NewError(op, engine.BadDBI)
	}
	b := t.tx.Bucket([]byte(name))
	if b == nil && dbi != mainDBI {
		return nil, engine.NewError(op, engine.BadDBI)
	}
	return b, nil
}

func (t *txn) OpenDB(name string, flags uint) (engine.DBI, error) {
	if flags&engine.DBOrderFlags != 0 {
		return 0, engine.NewError("open-db", engine.Incompatible)
	}
	if name == "" {
		return mainDBI, nil
	}
	if t.tx.Bucket([]byte(name)) == nil {
		if flags&engine.Create == 0 {
			return 0, engine.NewError("open-db", engine.NotFound)
		}
		if !t.tx.Writable() {
			return 0, engine.NewError("open-db", engine.EACCES)
		}
		if _, err := t.tx.CreateBucket([]byte(name)); err != nil {
			return 0, wrap("open-db", err)
		}
	}
	return t.env.dbiFor(name), nil
}

func (t *txn) DBFlags(dbi engine.DBI) (uint, error) {
	if _, err := t.bucket("db-flags", dbi); err != nil {
		return 0, err
	}
	return 0, nil
}

func (t *txn) Get(dbi engine.DBI, key []byte) ([]byte, error) {
	b, err := t.bucket("get", dbi)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, engine.NewError("get", engine.NotFound)
	}
	v := b.Get(key)
	if v == nil {
		return nil, engine.NewError("get", engine.NotFound)
	}
	return v, nil
}

func (t *txn) Put(dbi engine.DBI, key, val []byte, flags uint) error {
	b, err := t.bucket("put", dbi)
	if err != nil {
		return err
	}
	return t.putBucket(b, key, val, flags)
}

func (t *txn) putBucket(b *bolt.Bucket, key, val []byte, flags uint) error {
	if !t.tx.Writable() || b == nil {
		return engine.NewError("put", engine.EACCES)
	}
	if flags&(engine.NoDupData|engine.AppendDup) != 0 {
		return engine.NewError("put", engine.Incompatible)
	}
	if flags&engine.NoOverwrite != 0 && b.Get(key) != nil {
		return engine.NewError("put", engine.KeyExist)
	}
	if flags&engine.Append != 0 {
		if last, _ := b.Cursor().Last(); last != nil && bytes.Compare(key, last) <= 0 {
			return engine.NewError("put", engine.KeyExist)
		}
		// Sequential inserts pack leaves fully.
		b.FillPercent = 1.0
	}
	if err := t.reserve(int64(len(key) + len(val))); err != nil {
		return err
	}
	// bbolt keeps references to key and val until commit; MDBX callers
	// expect their buffers to be free after Put returns.
	key = bytes.Clone(key)
	val = append([]byte{}, val...)
	if err := b.Put(key, val); err != nil {
		return wrap("put", err)
	}
	t.writes++
	t.pending += int64(len(key)+len(val)) + entryOverhead
	return nil
}

// entryOverhead approximates the leaf element header of one entry.
const entryOverhead = 16

// reserve fails with MapFull when n more bytes could grow the file past the
// configured maximum. Leaves split half full and freed pages stay pinned
// while readers hold them, so pending bytes count three times. Staying below
// the maximum also keeps bbolt from remapping, which waits for every open
// reader.
func (t *txn) reserve(n int64) error {
	limit := t.env.maxSize
	if limit <= 0 {
		return nil
	}
	page := int64(t.env.pageSize)
	if t.tx.Size()+3*(t.pending+n+entryOverhead)+4*page > limit {
		return engine.NewError("put", engine.MapFull)
	}
	return nil
}

func (t *txn) Del(dbi engine.DBI, key, val []byte) error {
	b, err := t.bucket("del", dbi)
	if err != nil {
		return err
	}
	if !t.tx.Writable() || b == nil {
		return engine.NewError("del", engine.EACCES)
	}
	cur := b.Get(key)
	if cur == nil || (val != nil && !bytes.Equal(cur, val)) {
		return engine.NewError("del", engine.NotFound)
	}
	if err := b.Delete(key); err != nil {
		return wrap("del", err)
	}
	t.writes++
	return nil
}

func (t *txn) Drop(dbi engine.DBI, del bool) error {
	name, ok := t.env.bucketName(dbi)
	if !ok {
		return engine.NewError("drop", engine.BadDBI)
	}
	if dbi == mainDBI && del {
		return engine.NewError("drop", engine.Incompatible)
	}
	if err := t.tx.DeleteBucket([]byte(name)); err != nil {
		return wrap("drop", err)
	}
	t.writes++
	t.drops++
	if !del {
		if _, err := t.tx.CreateBucket([]byte(name)); err != nil {
			return wrap("drop", err)
		}
	}
	return nil
}

func (t *txn) Stat(dbi engine.DBI) (engine.Stat, error) {
	b, err := t.bucket("stat", dbi)
	if err != nil {
		return engine.Stat{}, err
	}
	st := engine.Stat{PageSize: uint32(t.tx.DB().Info().PageSize)}
	if b == nil {
		return st, nil
	}
	bs := b.Stats()
	st.Depth = uint32(bs.Depth)
	st.BranchPages = uint64(bs.BranchPageN)
	st.LeafPages = uint64(bs.LeafPageN)
	st.OverflowPages = uint64(bs.BranchOverflowN + bs.LeafOverflowN)
	st.Entries = uint64(bs.KeyN)
	if t.tx.Writable() {
		// Stats only sees pages already written; count the dirty tree.
		st.Entries = 0
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if v != nil {
				st.Entries++
			}
		}
	}
	return st, nil
}

func (t *txn) OpenCursor(dbi engine.DBI) (engine.Cursor, error) {
	b, err := t.bucket("cursor", dbi)
	if err != nil {
		return nil, err
	}
	c := &cursor{txn: t, dbi: dbi, b: b, drops: t.drops}
	if b != nil {
		c.c = b.Cursor()
	}
	return c, nil
}

func (t *txn) Commit() error {
	if !t.tx.Writable() {
		if err := t.tx.Rollback(); err != nil {
			return wrap("commit", err)
		}
		return nil
	}
	if err := t.tx.Commit(); err != nil {
		return wrap("commit", err)
	}
	return nil
}

func (t *txn) Abort() {
	_ = t.tx.Rollback()
}
