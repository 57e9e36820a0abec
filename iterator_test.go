package kvsafe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, it *Iterator) []string {
	t.Helper()
	var out []string
	for it.Next() {
		out = append(out, it.Key().String()+"="+it.Val().String())
	}
	require.False(t, it.Next(), "finished iterators stay finished")
	return out
}

func TestIterator(t *testing.T) {
	eachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		db := mustPut(t, env, "kv", 0, "a", "1", "b", "2", "c", "3")

		require.NoError(t, env.View(func(txn *Txn) error {
			cur, err := txn.OpenCursor(db)
			require.NoError(t, err)

			it := cur.Iter()
			require.Same(t, cur, it.Cursor())
			require.Equal(t, []string{"a=1", "b=2", "c=3"}, collect(t, it))
			require.NoError(t, it.Err())

			// A new iterator starts over.
			require.Equal(t, []string{"a=1", "b=2", "c=3"}, collect(t, cur.Iter()))

			require.Equal(t, []string{"b=2", "c=3"}, collect(t, cur.IterFrom([]byte("ab"))))
			require.Empty(t, collect(t, cur.IterFrom([]byte("d"))))

			it = cur.IterDup([]byte("a"))
			require.Empty(t, collect(t, it))
			requireCode(t, ErrInvalidState, it.Err(), "not a DupSort database")
			return nil
		}))
	})
}

func TestIteratorEmpty(t *testing.T) {
	eachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		db := mustPut(t, env, "kv", 0)
		require.NoError(t, env.View(func(txn *Txn) error {
			cur, err := txn.OpenCursor(db)
			require.NoError(t, err)
			it := cur.Iter()
			require.Empty(t, collect(t, it))
			require.NoError(t, it.Err())
			return nil
		}))
	})
}

func TestIteratorStopsOnClosedCursor(t *testing.T) {
	eachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		db := mustPut(t, env, "kv", 0, "a", "1", "b", "2")
		require.NoError(t, env.View(func(txn *Txn) error {
			cur, err := txn.OpenCursor(db)
			require.NoError(t, err)
			it := cur.Iter()
			require.True(t, it.Next())
			cur.Close()
			require.False(t, it.Next())
			requireCode(t, ErrInvalidState, it.Err())
			require.False(t, it.Key().Valid())
			return nil
		}))
	})
}
