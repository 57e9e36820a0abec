package boltengine

import (
	"bytes"

	bolt "go.etcd.io/bbolt"

	"github.com/Giulio2002/kvsafe/internal/engine"
)

// cursor adapts a bbolt cursor. bbolt cursors are invalidated by writes to
// their bucket, so the cursor keeps its current key and re-seeks after every
// modification.
type cursor struct {
	txn *txn
	dbi engine.DBI
	b   *bolt.Bucket
	c   *bolt.Cursor
	// drops is the transaction drop count when b was resolved.
	drops uint64

	key []byte
	// seq is the transaction write count when the cursor last moved.
	seq uint64
	// deleted is set after Del until the cursor moves again.
	deleted bool
}

// rebind resolves the bucket again after the database was cleared or
// dropped in this transaction. The cursor is left unpositioned.
func (c *cursor) rebind(op string) error {
	if c.drops == c.txn.drops {
		return nil
	}
	b, err := c.txn.bucket(op, c.dbi)
	if err != nil {
		return err
	}
	c.b, c.c, c.drops = b, nil, c.txn.drops
	if b != nil {
		c.c = b.Cursor()
	}
	c.key, c.deleted = nil, false
	return nil
}

func (c *cursor) Get(key, _ []byte, op engine.Op) ([]byte, []byte, error) {
	if err := c.rebind("cursor-get"); err != nil {
		return nil, nil, err
	}
	if c.c == nil {
		return nil, nil, engine.NewError("cursor-get", engine.NotFound)
	}
	var k, v []byte
	switch op {
	case engine.First:
		k, v = c.c.First()
	case engine.Last:
		k, v = c.c.Last()
	case engine.Next:
		if c.key == nil {
			return nil, nil, engine.NewError("cursor-get", engine.NotFound)
		}
		if k, v = c.reseek(); bytes.Equal(k, c.key) {
			k, v = c.c.Next()
		}
	case engine.Prev:
		if c.key == nil {
			return nil, nil, engine.NewError("cursor-get", engine.NotFound)
		}
		if k, _ = c.reseek(); k == nil {
			k, v = c.c.Last()
		} else {
			k, v = c.c.Prev()
		}
	case engine.GetCurrent:
		if c.key == nil || c.deleted {
			return nil, nil, engine.NewError("cursor-get", engine.NotFound)
		}
		if k, v = c.c.Seek(c.key); !bytes.Equal(k, c.key) {
			return nil, nil, engine.NewError("cursor-get", engine.NotFound)
		}
	case engine.Set, engine.SetKey:
		k, v = c.c.Seek(key)
		if !bytes.Equal(k, key) {
			return nil, nil, engine.NewError("cursor-get", engine.NotFound)
		}
	case engine.SetRange:
		k, v = c.c.Seek(key)
	default:
		return nil, nil, engine.NewError("cursor-get", engine.Incompatible)
	}
	if k == nil {
		return nil, nil, engine.NewError("cursor-get", engine.NotFound)
	}
	c.key = append(c.key[:0], k...)
	c.seq = c.txn.writes
	c.deleted = false
	return k, v, nil
}

// reseek returns the element at the remembered key, or its successor when
// the key is gone. The bbolt cursor is only rebuilt when the transaction
// wrote since the cursor last moved.
func (c *cursor) reseek() ([]byte, []byte) {
	if c.seq == c.txn.writes && !c.deleted {
		return c.key, nil
	}
	return c.c.Seek(c.key)
}

func (c *cursor) Put(key, val []byte, flags uint) error {
	if err := c.rebind("cursor-put"); err != nil {
		return err
	}
	if c.b == nil {
		return engine.NewError("cursor-put", engine.EACCES)
	}
	if flags&engine.Current != 0 {
		if c.key == nil || c.deleted {
			return engine.NewError("cursor-put", engine.EINVAL)
		}
		if key != nil && !bytes.Equal(key, c.key) {
			return engine.NewError("cursor-put", engine.EINVAL)
		}
		key = bytes.Clone(c.key)
		flags &^= engine.Current
	}
	if err := c.txn.putBucket(c.b, key, val, flags); err != nil {
		return err
	}
	c.key = append(c.key[:0], key...)
	c.deleted = false
	return nil
}

func (c *cursor) Del(flags uint) error {
	if err := c.rebind("cursor-del"); err != nil {
		return err
	}
	if c.c == nil || c.key == nil || c.deleted {
		return engine.NewError("cursor-del", engine.EINVAL)
	}
	if !c.txn.tx.Writable() {
		return engine.NewError("cursor-del", engine.EACCES)
	}
	if err := c.b.Delete(c.key); err != nil {
		return wrap("cursor-del", err)
	}
	c.txn.writes++
	c.deleted = true
	return nil
}

func (c *cursor) Count() (uint64, error) {
	return 0, engine.NewError("cursor-count", engine.Incompatible)
}

func (c *cursor) Close() {}
