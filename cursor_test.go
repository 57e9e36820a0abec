package kvsafe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func requirePair(t *testing.T, wantK, wantV string, k, v Value, err error) {
	t.Helper()
	require.NoError(t, err)
	require.Equal(t, wantK, k.String())
	require.Equal(t, wantV, v.String())
}

func TestCursorWalk(t *testing.T) {
	eachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		db := mustPut(t, env, "kv", 0, "1", "a", "2", "b", "3", "c")

		require.NoError(t, env.View(func(txn *Txn) error {
			cur, err := txn.OpenCursor(db)
			require.NoError(t, err)
			require.Same(t, txn, cur.Txn())
			require.Equal(t, db, cur.Database())

			_, _, err = cur.Next()
			requireCode(t, ErrInvalidState, err, "unset cursor cannot step")

			k, v, err := cur.First()
			requirePair(t, "1", "a", k, v, err)
			k, v, err = cur.Next()
			requirePair(t, "2", "b", k, v, err)
			k, v, err = cur.Next()
			requirePair(t, "3", "c", k, v, err)

			_, _, err = cur.Next()
			requireCode(t, ErrEndOfRange, err)
			require.True(t, IsEndOfRange(err))
			_, _, err = cur.Next()
			requireCode(t, ErrEndOfRange, err)
			_, _, err = cur.Prev()
			requireCode(t, ErrEndOfRange, err, "exhausted until repositioned")
			_, _, err = cur.Current()
			requireCode(t, ErrEndOfRange, err)

			k, v, err = cur.First()
			requirePair(t, "1", "a", k, v, err)
			_, _, err = cur.Prev()
			requireCode(t, ErrEndOfRange, err)

			k, v, err = cur.Last()
			requirePair(t, "3", "c", k, v, err)
			k, v, err = cur.Prev()
			requirePair(t, "2", "b", k, v, err)
			k, v, err = cur.Current()
			requirePair(t, "2", "b", k, v, err)
			return nil
		}))
	})
}

func TestCursorSeek(t *testing.T) {
	eachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		db := mustPut(t, env, "kv", 0, "a", "1", "c", "3", "e", "5")

		require.NoError(t, env.View(func(txn *Txn) error {
			cur, err := txn.OpenCursor(db)
			require.NoError(t, err)
			defer cur.Close()

			k, v, err := cur.Seek([]byte("c"))
			requirePair(t, "c", "3", k, v, err)

			_, _, err = cur.Seek([]byte("b"))
			requireCode(t, ErrNotFound, err)
			_, _, err = cur.Next()
			requireCode(t, ErrInvalidState, err, "a miss unsets the cursor")

			k, v, err = cur.SeekRange([]byte("b"))
			requirePair(t, "c", "3", k, v, err)
			k, v, err = cur.Next()
			requirePair(t, "e", "5", k, v, err)

			k, v, err = cur.SeekRange([]byte("e"))
			requirePair(t, "e", "5", k, v, err)
			_, _, err = cur.SeekRange([]byte("f"))
			requireCode(t, ErrNotFound, err)
			return nil
		}))
	})
}

func TestCursorEmpty(t *testing.T) {
	eachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		db := mustPut(t, env, "kv", 0)

		require.NoError(t, env.View(func(txn *Txn) error {
			cur, err := txn.OpenCursor(db)
			require.NoError(t, err)
			_, _, err = cur.First()
			requireCode(t, ErrNotFound, err)
			_, _, err = cur.Last()
			requireCode(t, ErrNotFound, err)
			return nil
		}))
	})
}

func TestCursorDelete(t *testing.T) {
	eachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		db := mustPut(t, env, "kv", 0, "1", "a", "2", "b", "3", "c")

		require.NoError(t, env.Update(func(txn *Txn) error {
			cur, err := txn.OpenCursor(db)
			require.NoError(t, err)

			requireCode(t, ErrInvalidState, cur.Delete(), "nothing under an unset cursor")

			_, _, err = cur.Seek([]byte("2"))
			require.NoError(t, err)
			require.NoError(t, cur.Delete())

			_, _, err = cur.Current()
			requireCode(t, ErrNotFound, err)
			requireCode(t, ErrInvalidState, cur.Delete())
			requireCode(t, ErrInvalidState, cur.Put(nil, []byte("x"), Current))

			k, v, err := cur.Next()
			requirePair(t, "3", "c", k, v, err)

			_, err = txn.Get(db, []byte("2"))
			requireCode(t, ErrNotFound, err)
			return nil
		}))
	})
}

func TestCursorDeleteWhileIterating(t *testing.T) {
	eachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		db := mustPut(t, env, "kv", 0, "a", "1", "b", "2", "c", "3", "d", "4", "e", "5")

		require.NoError(t, env.Update(func(txn *Txn) error {
			cur, err := txn.OpenCursor(db)
			require.NoError(t, err)
			var seen []string
			k, v, err := cur.First()
			for err == nil {
				seen = append(seen, k.String())
				if v.String() == "2" || v.String() == "4" {
					require.NoError(t, cur.Delete())
				}
				k, v, err = cur.Next()
			}
			requireCode(t, ErrEndOfRange, err)
			require.Equal(t, []string{"a", "b", "c", "d", "e"}, seen)

			st, err := txn.Stat(db)
			require.NoError(t, err)
			require.EqualValues(t, 3, st.Entries)
			return nil
		}))
	})
}

func TestCursorPut(t *testing.T) {
	eachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		db := mustPut(t, env, "kv", 0, "a", "1", "c", "3")

		require.NoError(t, env.Update(func(txn *Txn) error {
			cur, err := txn.OpenCursor(db)
			require.NoError(t, err)

			requireCode(t, ErrInvalidState, cur.Put(nil, []byte("x"), Current), "unset")

			require.NoError(t, cur.Put([]byte("b"), []byte("2"), 0))
			k, v, err := cur.Current()
			requirePair(t, "b", "2", k, v, err)
			k, v, err = cur.Next()
			requirePair(t, "c", "3", k, v, err)

			require.NoError(t, cur.Put(nil, []byte("three"), Current))
			k, v, err = cur.Current()
			requirePair(t, "c", "three", k, v, err)

			requireCode(t, ErrKeyExists, cur.Put([]byte("a"), []byte("x"), NoOverwrite))
			requireCode(t, ErrConfiguration, cur.Put([]byte("a"), []byte("x"), NoDupData))
			return nil
		}))

		require.NoError(t, env.View(func(txn *Txn) error {
			cur, err := txn.OpenCursor(db)
			require.NoError(t, err)
			_, _, err = cur.First()
			require.NoError(t, err)
			requireCode(t, ErrReadOnly, cur.Put([]byte("z"), nil, 0))
			requireCode(t, ErrReadOnly, cur.Delete())
			return nil
		}))
	})
}

func TestCursorPutCurrentKeepsKeys(t *testing.T) {
	eachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		db := mustPut(t, env, "kv", 0, "a", "1", "b", "2", "c", "3")

		require.NoError(t, env.Update(func(txn *Txn) error {
			cur, err := txn.OpenCursor(db)
			require.NoError(t, err)
			_, _, err = cur.Seek([]byte("c"))
			require.NoError(t, err)
			require.NoError(t, cur.Put(nil, []byte("a much longer value for c"), Current))
			k, v, err := cur.Current()
			requirePair(t, "c", "a much longer value for c", k, v, err)
			return nil
		}))

		require.NoError(t, env.View(func(txn *Txn) error {
			for _, kv := range [][2]string{{"a", "1"}, {"b", "2"}, {"c", "a much longer value for c"}} {
				v, err := txn.Get(db, []byte(kv[0]))
				require.NoError(t, err, kv[0])
				require.Equal(t, kv[1], v.String())
			}
			st, err := txn.Stat(db)
			require.NoError(t, err)
			require.EqualValues(t, 3, st.Entries)
			return nil
		}))
	})
}

func TestCursorAfterClear(t *testing.T) {
	eachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		db := mustPut(t, env, "kv", 0, "k1", "v1", "k3", "v3")
		mainDB := mustPut(t, env, "", 0, "m1", "v1")

		require.NoError(t, env.Update(func(txn *Txn) error {
			cur, err := txn.OpenCursor(db)
			require.NoError(t, err)
			_, _, err = cur.First()
			require.NoError(t, err)
			require.NoError(t, txn.ClearDatabase(db))

			_, _, err = cur.Next()
			requireCode(t, ErrInvalidState, err, "unset by the clear")
			require.NoError(t, cur.Put([]byte("k2"), []byte("v2"), 0))
			k, v, err := cur.First()
			requirePair(t, "k2", "v2", k, v, err)
			_, _, err = cur.Next()
			requireCode(t, ErrEndOfRange, err)

			mcur, err := txn.OpenCursor(mainDB)
			require.NoError(t, err)
			_, _, err = mcur.First()
			require.NoError(t, err)
			require.NoError(t, txn.DropDatabase(mainDB))
			_, _, err = mcur.Current()
			requireCode(t, ErrInvalidState, err)
			require.NoError(t, mcur.Put([]byte("m2"), []byte("v2"), 0))
			k, v, err = mcur.Last()
			requirePair(t, "m2", "v2", k, v, err)
			return nil
		}))
	})
}

func TestCursorSeesTxnWrites(t *testing.T) {
	eachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		db := mustPut(t, env, "kv", 0, "a", "1", "d", "4")

		require.NoError(t, env.Update(func(txn *Txn) error {
			cur, err := txn.OpenCursor(db)
			require.NoError(t, err)
			_, _, err = cur.First()
			require.NoError(t, err)

			require.NoError(t, txn.Put(db, []byte("b"), []byte("2"), 0))
			require.NoError(t, txn.Put(db, []byte("c"), []byte("3"), 0))

			var keys []string
			it := cur.IterFrom([]byte("a"))
			for it.Next() {
				keys = append(keys, it.Key().String())
			}
			require.NoError(t, it.Err())
			require.Equal(t, []string{"a", "b", "c", "d"}, keys)
			return nil
		}))
	})
}

func TestCursorLifetime(t *testing.T) {
	eachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		db := mustPut(t, env, "kv", 0, "a", "1")

		txn, err := env.BeginTxn(nil, TxnReadOnly)
		require.NoError(t, err)
		cur, err := txn.OpenCursor(db)
		require.NoError(t, err)
		closed, err := txn.OpenCursor(db)
		require.NoError(t, err)
		closed.Close()
		closed.Close()
		_, _, err = closed.First()
		requireCode(t, ErrInvalidState, err)

		txn.Abort()
		_, _, err = cur.First()
		requireCode(t, ErrInvalidState, err)
		cur.Close()

		var nilCursor *Cursor
		nilCursor.Close()
		_, _, err = nilCursor.First()
		requireCode(t, ErrInvalidState, err)
	})
}

func TestCursorNonDupSort(t *testing.T) {
	eachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		db := mustPut(t, env, "kv", 0, "a", "1")

		require.NoError(t, env.View(func(txn *Txn) error {
			cur, err := txn.OpenCursor(db)
			require.NoError(t, err)
			_, _, err = cur.First()
			require.NoError(t, err)

			_, err = cur.FirstDup()
			requireCode(t, ErrInvalidState, err)
			_, err = cur.LastDup()
			requireCode(t, ErrInvalidState, err)
			_, _, err = cur.NextDup()
			requireCode(t, ErrInvalidState, err)
			_, _, err = cur.PrevDup()
			requireCode(t, ErrInvalidState, err)
			_, _, err = cur.NextNoDup()
			requireCode(t, ErrInvalidState, err)
			_, err = cur.Count()
			requireCode(t, ErrInvalidState, err)
			return nil
		}))
	})
}

func TestCursorDupSort(t *testing.T) {
	eachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		requireDupSort(t, env)
		db, err := env.CreateDatabase("dups", DupSort)
		require.NoError(t, err)
		require.NoError(t, env.Update(func(txn *Txn) error {
			for _, kv := range [][2]string{{"a", "3"}, {"a", "1"}, {"a", "2"}, {"b", "4"}} {
				require.NoError(t, txn.Put(db, []byte(kv[0]), []byte(kv[1]), 0))
			}
			requireCode(t, ErrKeyExists, txn.Put(db, []byte("a"), []byte("2"), NoDupData))
			return nil
		}))

		require.NoError(t, env.View(func(txn *Txn) error {
			cur, err := txn.OpenCursor(db)
			require.NoError(t, err)

			_, err = cur.Count()
			requireCode(t, ErrInvalidState, err, "unset")

			k, v, err := cur.Seek([]byte("a"))
			requirePair(t, "a", "1", k, v, err)
			n, err := cur.Count()
			require.NoError(t, err)
			require.EqualValues(t, 3, n)

			k, v, err = cur.NextDup()
			requirePair(t, "a", "2", k, v, err)
			k, v, err = cur.NextDup()
			requirePair(t, "a", "3", k, v, err)
			_, _, err = cur.NextDup()
			requireCode(t, ErrEndOfRange, err)

			// Still positioned on "a".
			v, err = cur.LastDup()
			require.NoError(t, err)
			require.Equal(t, "3", v.String())
			k, v, err = cur.PrevDup()
			requirePair(t, "a", "2", k, v, err)
			v, err = cur.FirstDup()
			require.NoError(t, err)
			require.Equal(t, "1", v.String())

			k, v, err = cur.NextNoDup()
			requirePair(t, "b", "4", k, v, err)
			n, err = cur.Count()
			require.NoError(t, err)
			require.EqualValues(t, 1, n)
			_, _, err = cur.NextNoDup()
			requireCode(t, ErrEndOfRange, err)

			k, v, err = cur.SeekDup([]byte("a"), []byte("2"))
			requirePair(t, "a", "2", k, v, err)
			_, _, err = cur.SeekDup([]byte("a"), []byte("9"))
			requireCode(t, ErrNotFound, err)
			k, v, err = cur.SeekDupRange([]byte("a"), []byte("15"))
			requirePair(t, "a", "2", k, v, err)

			var vals []string
			it := cur.IterDup([]byte("a"))
			for it.Next() {
				vals = append(vals, it.Val().String())
			}
			require.NoError(t, it.Err())
			require.Equal(t, []string{"1", "2", "3"}, vals)
			return nil
		}))

		// Del with a value removes one duplicate, without removes all.
		require.NoError(t, env.Update(func(txn *Txn) error {
			require.NoError(t, txn.Del(db, []byte("a"), []byte("2")))
			cur, err := txn.OpenCursor(db)
			require.NoError(t, err)
			_, _, err = cur.Seek([]byte("a"))
			require.NoError(t, err)
			n, err := cur.Count()
			require.NoError(t, err)
			require.EqualValues(t, 2, n)

			require.NoError(t, txn.Del(db, []byte("a"), nil))
			_, err = txn.Get(db, []byte("a"))
			requireCode(t, ErrNotFound, err)
			return nil
		}))
	})
}

func TestTwoCursors(t *testing.T) {
	eachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		db := mustPut(t, env, "kv", 0)

		require.NoError(t, env.Update(func(txn *Txn) error {
			writer, err := txn.OpenCursor(db)
			require.NoError(t, err)
			for _, k := range []string{"key1", "key3", "key5"} {
				require.NoError(t, writer.Put([]byte(k), []byte("v"), 0))
			}

			reader, err := txn.OpenCursor(db)
			require.NoError(t, err)
			k, _, err := reader.First()
			require.NoError(t, err)
			require.Equal(t, "key1", k.String())

			// Writes through one cursor are seen by the other.
			_, _, err = writer.Seek([]byte("key3"))
			require.NoError(t, err)
			require.NoError(t, writer.Delete())
			require.NoError(t, writer.Put([]byte("key2"), []byte("v"), 0))

			var keys []string
			for {
				k, _, err := reader.Next()
				if IsEndOfRange(err) {
					break
				}
				require.NoError(t, err)
				keys = append(keys, k.String())
			}
			require.Equal(t, []string{"key2", "key5"}, keys)
			return nil
		}))
	})
}
