package kvsafe

import (
	"bytes"

	"github.com/Giulio2002/kvsafe/internal/engine"
)

// cursorSignature is the magic number for valid cursors
const cursorSignature uint32 = 0x4B565343 // "KVSC"

// cursorState tracks where a cursor is
type cursorState uint8

const (
	cursorUnset     cursorState = iota
	cursorPointing              // at an element
	cursorExhausted             // stepped past either end
)

// Cursor is a position in one database within one transaction. It starts
// unset: First, Last, Seek or SeekRange position it, Next and Prev step it.
// Stepping past either end fails with ErrEndOfRange and leaves the cursor
// exhausted until it is positioned again.
//
// A cursor is closed automatically when its transaction terminates.
type Cursor struct {
	signature uint32
	txn       *Txn
	db        Database
	dupSort   bool
	eng       engine.Cursor
	state     cursorState
	deleted   bool // element under the cursor was deleted
	closed    bool
}

// OpenCursor opens an unset cursor over db.
func (t *Txn) OpenCursor(db Database) (*Cursor, error) {
	const op = "open-cursor"
	if err := t.check(op, false); err != nil {
		return nil, err
	}
	ent, err := t.resolve(op, db)
	if err != nil {
		return nil, err
	}
	ec, err := t.eng.OpenCursor(db.dbi)
	if err != nil {
		return nil, t.fail(op, err, stageTxn)
	}
	c := &Cursor{
		signature: cursorSignature,
		txn:       t,
		db:        db,
		dupSort:   ent.flags&DupSort != 0,
		eng:       ec,
	}
	t.cursors[c] = struct{}{}
	t.env.metrics.openCursors.Inc()
	return c, nil
}

// valid returns true if the cursor handle is valid.
func (c *Cursor) valid() bool {
	return c != nil && c.signature == cursorSignature
}

// Txn returns the cursor's transaction.
func (c *Cursor) Txn() *Txn { return c.txn }

// Database returns the cursor's database.
func (c *Cursor) Database() Database { return c.db }

// Close closes the cursor. It is a no-op on a closed cursor.
func (c *Cursor) Close() {
	if !c.valid() || c.closed {
		return
	}
	c.close()
}

func (c *Cursor) close() {
	if c.closed {
		return
	}
	c.eng.Close()
	c.closed = true
	c.state = cursorUnset
	delete(c.txn.cursors, c)
	c.txn.env.metrics.openCursors.Dec()
}

func (c *Cursor) check(op string, write bool) error {
	if !c.valid() {
		return newError(ErrInvalidState, op, "invalid cursor")
	}
	if c.closed {
		return newError(ErrInvalidState, op, "cursor is closed")
	}
	if err := c.txn.check(op, write); err != nil {
		return err
	}
	_, err := c.txn.resolve(op, c.db)
	return err
}

func (c *Cursor) checkDup(op string) error {
	if err := c.check(op, false); err != nil {
		return err
	}
	if !c.dupSort {
		return newError(ErrInvalidState, op, "database %q does not allow duplicates", c.db.name)
	}
	return nil
}

func (c *Cursor) checkPointing(op string) error {
	switch {
	case c.state == cursorUnset:
		return newError(ErrInvalidState, op, "cursor is not positioned")
	case c.state == cursorExhausted:
		return newError(ErrEndOfRange, op, "cursor is past the end")
	case c.deleted:
		return newError(ErrInvalidState, op, "element under the cursor was deleted")
	}
	return nil
}

// position runs a positioning op. A miss is ErrNotFound and unsets the
// cursor.
func (c *Cursor) position(op string, key, val []byte, eop engine.Op) (Value, Value, error) {
	k, v, err := c.eng.Get(key, val, eop)
	if err != nil {
		c.state = cursorUnset
		return Value{}, Value{}, c.txn.fail(op, err, stageTxn)
	}
	c.state = cursorPointing
	c.deleted = false
	return c.txn.newValue(k), c.txn.newValue(v), nil
}

// step runs a relative move. Running off the end is ErrEndOfRange; with
// exhaust the cursor is then exhausted, otherwise it stays where it was.
func (c *Cursor) step(op string, eop engine.Op, exhaust bool) (Value, Value, error) {
	switch c.state {
	case cursorUnset:
		return Value{}, Value{}, newError(ErrInvalidState, op, "cursor is not positioned")
	case cursorExhausted:
		return Value{}, Value{}, newError(ErrEndOfRange, op, "end of range")
	}
	k, v, err := c.eng.Get(nil, nil, eop)
	if err != nil {
		if engine.IsNotFound(err) {
			if exhaust {
				c.state = cursorExhausted
			}
			return Value{}, Value{}, &Error{Code: ErrEndOfRange, Op: op, Err: err}
		}
		return Value{}, Value{}, c.txn.fail(op, err, stageTxn)
	}
	c.deleted = false
	return c.txn.newValue(k), c.txn.newValue(v), nil
}

// First positions at the first element.
func (c *Cursor) First() (Value, Value, error) {
	if err := c.check("first", false); err != nil {
		return Value{}, Value{}, err
	}
	return c.position("first", nil, nil, engine.First)
}

// Last positions at the last element.
func (c *Cursor) Last() (Value, Value, error) {
	if err := c.check("last", false); err != nil {
		return Value{}, Value{}, err
	}
	return c.position("last", nil, nil, engine.Last)
}

// Seek positions at key exactly.
func (c *Cursor) Seek(key []byte) (Value, Value, error) {
	if err := c.check("seek", false); err != nil {
		return Value{}, Value{}, err
	}
	return c.position("seek", key, nil, engine.SetKey)
}

// SeekRange positions at the first key greater than or equal to key.
func (c *Cursor) SeekRange(key []byte) (Value, Value, error) {
	if err := c.check("seek-range", false); err != nil {
		return Value{}, Value{}, err
	}
	return c.position("seek-range", key, nil, engine.SetRange)
}

// Current returns the element under the cursor. It fails with ErrNotFound
// if that element was deleted.
func (c *Cursor) Current() (Value, Value, error) {
	const op = "current"
	if err := c.check(op, false); err != nil {
		return Value{}, Value{}, err
	}
	if c.state == cursorPointing && c.deleted {
		return Value{}, Value{}, newError(ErrNotFound, op, "element under the cursor was deleted")
	}
	if err := c.checkPointing(op); err != nil {
		return Value{}, Value{}, err
	}
	k, v, err := c.eng.Get(nil, nil, engine.GetCurrent)
	if err != nil {
		return Value{}, Value{}, c.txn.fail(op, err, stageTxn)
	}
	return c.txn.newValue(k), c.txn.newValue(v), nil
}

// Next steps to the next element.
func (c *Cursor) Next() (Value, Value, error) {
	if err := c.check("next", false); err != nil {
		return Value{}, Value{}, err
	}
	return c.step("next", engine.Next, true)
}

// Prev steps to the previous element.
func (c *Cursor) Prev() (Value, Value, error) {
	if err := c.check("prev", false); err != nil {
		return Value{}, Value{}, err
	}
	return c.step("prev", engine.Prev, true)
}

// Put stores val under key and positions the cursor there. With Current
// it replaces the value under the cursor instead; key must then be nil or
// the current key. Write transactions only.
func (c *Cursor) Put(key, val []byte, flags uint) error {
	const op = "cursor-put"
	if err := c.check(op, true); err != nil {
		return err
	}
	if flags&^(txnPutFlags|Current) != 0 {
		return newError(ErrConfiguration, op, "unsupported put flags 0x%x", flags&^(txnPutFlags|Current))
	}
	if flags&(NoDupData|AppendDup) != 0 && !c.dupSort {
		return newError(ErrConfiguration, op, "NoDupData and AppendDup need a DupSort database")
	}
	if flags&Current != 0 {
		if err := c.checkPointing(op); err != nil {
			return err
		}
		if key == nil {
			k, _, err := c.eng.Get(nil, nil, engine.GetCurrent)
			if err != nil {
				return c.txn.fail(op, err, stageTxn)
			}
			// k is engine memory the put may rewrite.
			key = bytes.Clone(k)
		}
	}
	c.txn.markWrite()
	if err := c.eng.Put(key, val, flags); err != nil {
		return c.txn.fail(op, err, stageTxn)
	}
	c.state = cursorPointing
	c.deleted = false
	return nil
}

// Delete removes the element under the cursor. Next and Prev then step
// from the deleted position. Write transactions only.
func (c *Cursor) Delete() error {
	const op = "cursor-delete"
	if err := c.check(op, true); err != nil {
		return err
	}
	if err := c.checkPointing(op); err != nil {
		return err
	}
	c.txn.markWrite()
	if err := c.eng.Del(0); err != nil {
		return c.txn.fail(op, err, stageTxn)
	}
	c.deleted = true
	return nil
}

// FirstDup positions at the first value of the current key.
func (c *Cursor) FirstDup() (Value, error) {
	return c.dupMove("first-dup", engine.FirstDup)
}

// LastDup positions at the last value of the current key.
func (c *Cursor) LastDup() (Value, error) {
	return c.dupMove("last-dup", engine.LastDup)
}

// NextDup steps to the next value of the current key. After the last one it
// fails with ErrEndOfRange and the cursor stays on the last value.
func (c *Cursor) NextDup() (Value, Value, error) {
	if err := c.checkDup("next-dup"); err != nil {
		return Value{}, Value{}, err
	}
	return c.step("next-dup", engine.NextDup, false)
}

// PrevDup steps to the previous value of the current key.
func (c *Cursor) PrevDup() (Value, Value, error) {
	if err := c.checkDup("prev-dup"); err != nil {
		return Value{}, Value{}, err
	}
	return c.step("prev-dup", engine.PrevDup, false)
}

// NextNoDup steps to the first value of the next key.
func (c *Cursor) NextNoDup() (Value, Value, error) {
	if err := c.checkDup("next-nodup"); err != nil {
		return Value{}, Value{}, err
	}
	return c.step("next-nodup", engine.NextNoDup, true)
}

// SeekDup positions at the exact key/value pair.
func (c *Cursor) SeekDup(key, val []byte) (Value, Value, error) {
	if err := c.checkDup("seek-dup"); err != nil {
		return Value{}, Value{}, err
	}
	return c.position("seek-dup", key, val, engine.GetBoth)
}

// SeekDupRange positions at key's first value greater than or equal to val.
func (c *Cursor) SeekDupRange(key, val []byte) (Value, Value, error) {
	if err := c.checkDup("seek-dup-range"); err != nil {
		return Value{}, Value{}, err
	}
	return c.position("seek-dup-range", key, val, engine.GetBothRange)
}

func (c *Cursor) dupMove(op string, eop engine.Op) (Value, error) {
	if err := c.checkDup(op); err != nil {
		return Value{}, err
	}
	if err := c.checkPointing(op); err != nil {
		return Value{}, err
	}
	_, v, err := c.eng.Get(nil, nil, eop)
	if err != nil {
		return Value{}, c.txn.fail(op, err, stageTxn)
	}
	return c.txn.newValue(v), nil
}

// Count returns the number of values of the current key.
func (c *Cursor) Count() (uint64, error) {
	const op = "count"
	if err := c.checkDup(op); err != nil {
		return 0, err
	}
	if err := c.checkPointing(op); err != nil {
		return 0, err
	}
	n, err := c.eng.Count()
	if err != nil {
		return 0, c.txn.fail(op, err, stageTxn)
	}
	return n, nil
}
