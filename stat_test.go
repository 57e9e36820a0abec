package kvsafe

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStat(t *testing.T) {
	eachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		db, err := env.CreateDatabase("kv", 0)
		require.NoError(t, err)

		st, err := env.DatabaseStat(db)
		require.NoError(t, err)
		require.Zero(t, st.Entries)

		require.NoError(t, env.Update(func(txn *Txn) error {
			for i := 0; i < 1000; i++ {
				k := []byte(fmt.Sprintf("key-%04d", i))
				if err := txn.Put(db, k, k, 0); err != nil {
					return err
				}
			}
			st, err := txn.Stat(db)
			require.NoError(t, err)
			require.EqualValues(t, 1000, st.Entries, "uncommitted writes are counted")
			return nil
		}))

		st, err = env.DatabaseStat(db)
		require.NoError(t, err)
		require.EqualValues(t, 1000, st.Entries)
		require.NotZero(t, st.PageSize)
		require.NotZero(t, st.Depth)
		require.NotZero(t, st.LeafPages)

		def, err := env.Stat()
		require.NoError(t, err)
		require.Equal(t, st.PageSize, def.PageSize)
	})
}

func TestInfo(t *testing.T) {
	eachEngine(t, func(t *testing.T, name string) {
		env := openTestEnv(t, name)
		before, err := env.Info()
		require.NoError(t, err)
		require.Equal(t, env.Path(), before.Path)
		require.Equal(t, name, before.Engine)
		require.NotZero(t, before.PageSize)
		require.NotZero(t, before.MapSize)
		require.GreaterOrEqual(t, before.MaxReaders, uint32(DefaultMaxReaders))

		mustPut(t, env, "kv", 0, "a", "1")

		r, err := env.BeginTxn(nil, TxnReadOnly)
		require.NoError(t, err)
		defer r.Abort()

		after, err := env.Info()
		require.NoError(t, err)
		require.Greater(t, after.LastTxnID, before.LastTxnID)
		require.GreaterOrEqual(t, after.NumReaders, uint32(1))
	})
}
