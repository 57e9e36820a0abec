//go:build cgo

package mdbxengine

import (
	"github.com/erigontech/mdbx-go/mdbx"

	"github.com/Giulio2002/kvsafe/internal/engine"
)

var cursorOps = map[engine.Op]uint{
	engine.First:        mdbx.First,
	engine.FirstDup:     mdbx.FirstDup,
	engine.GetBoth:      mdbx.GetBoth,
	engine.GetBothRange: mdbx.GetBothRange,
	engine.GetCurrent:   mdbx.GetCurrent,
	engine.Last:         mdbx.Last,
	engine.LastDup:      mdbx.LastDup,
	engine.Next:         mdbx.Next,
	engine.NextDup:      mdbx.NextDup,
	engine.NextNoDup:    mdbx.NextNoDup,
	engine.Prev:         mdbx.Prev,
	engine.PrevDup:      mdbx.PrevDup,
	engine.PrevNoDup:    mdbx.PrevNoDup,
	engine.Set:          mdbx.Set,
	engine.SetKey:       mdbx.SetKey,
	engine.SetRange:     mdbx.SetRange,
}

type cursor struct {
	c *mdbx.Cursor
}

func (c *cursor) Get(key, val []byte, op engine.Op) ([]byte, []byte, error) {
	mop, ok := cursorOps[op]
	if !ok {
		return nil, nil, engine.NewError("cursor-get", engine.EINVAL)
	}
	k, v, err := c.c.Get(key, val, mop)
	if err != nil {
		return nil, nil, wrap("cursor-get", err)
	}
	return k, v, nil
}

func (c *cursor) Put(key, val []byte, flags uint) error {
	if err := c.c.Put(key, val, mapFlags(flags, putFlags)); err != nil {
		return wrap("cursor-put", err)
	}
	return nil
}

func (c *cursor) Del(flags uint) error {
	var mflags uint
	if flags&engine.AllDups != 0 {
		mflags = mdbx.AllDups
	}
	if err := c.c.Del(mflags); err != nil {
		return wrap("cursor-del", err)
	}
	return nil
}

func (c *cursor) Count() (uint64, error) {
	n, err := c.c.Count()
	if err != nil {
		return 0, wrap("cursor-count", err)
	}
	return uint64(n), nil
}

func (c *cursor) Close() {
	c.c.Close()
}
