package kvsafe

// Iterator walks a cursor forward:
//
//	it := cur.Iter()
//	for it.Next() {
//	    use(it.Key(), it.Val())
//	}
//	if err := it.Err(); err != nil {
//	    return err
//	}
//
// Running off the end or starting on a missing key ends the walk without an
// error.
type Iterator struct {
	c       *Cursor
	start   func() (Value, Value, error)
	step    func() (Value, Value, error)
	started bool
	done    bool
	key     Value
	val     Value
	err     error
}

// Iter walks the whole database from the first key.
func (c *Cursor) Iter() *Iterator {
	return &Iterator{c: c, start: c.First, step: c.Next}
}

// IterFrom walks from the first key greater than or equal to key.
func (c *Cursor) IterFrom(key []byte) *Iterator {
	return &Iterator{
		c:     c,
		start: func() (Value, Value, error) { return c.SeekRange(key) },
		step:  c.Next,
	}
}

// IterDup walks the values of key in a DupSort database.
func (c *Cursor) IterDup(key []byte) *Iterator {
	return &Iterator{
		c: c,
		start: func() (Value, Value, error) {
			k, _, err := c.Seek(key)
			if err != nil {
				return Value{}, Value{}, err
			}
			v, err := c.FirstDup()
			return k, v, err
		},
		step: c.NextDup,
	}
}

// Next advances the iterator and reports whether an element is available.
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}
	var (
		k, v Value
		err  error
	)
	if !it.started {
		it.started = true
		k, v, err = it.start()
	} else {
		k, v, err = it.step()
	}
	if err != nil {
		it.done = true
		it.key, it.val = Value{}, Value{}
		if !IsNotFound(err) && !IsEndOfRange(err) {
			it.err = err
		}
		return false
	}
	it.key, it.val = k, v
	return true
}

// Key returns the current key.
func (it *Iterator) Key() Value { return it.key }

// Val returns the current value.
func (it *Iterator) Val() Value { return it.val }

// Err returns the error that stopped the walk, if any.
func (it *Iterator) Err() error { return it.err }

// Cursor returns the underlying cursor.
func (it *Iterator) Cursor() *Cursor { return it.c }
