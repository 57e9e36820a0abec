package kvsafe

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Giulio2002/kvsafe/internal/engine"
)

func engineNames() []string { return engine.Drivers() }

// eachEngine runs fn once per registered engine.
func eachEngine(t *testing.T, fn func(t *testing.T, name string)) {
	t.Helper()
	for _, name := range engine.Drivers() {
		t.Run(name, func(t *testing.T) {
			fn(t, name)
		})
	}
}

func testConfig(t *testing.T, name string) Config {
	cfg := DefaultConfig(filepath.Join(t.TempDir(), "env"))
	cfg.Engine = name
	cfg.MaxSize = 16 << 20
	cfg.MaxDatabases = 8
	cfg.Logger = zaptest.NewLogger(t)
	return cfg
}

func openTestEnv(t *testing.T, name string, opts ...func(*Config)) *Env {
	t.Helper()
	cfg := testConfig(t, name)
	for _, opt := range opts {
		opt(&cfg)
	}
	env, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, env.Close())
	})
	return env
}

func requireNested(t *testing.T, env *Env) {
	if !env.caps.NestedTxn {
		t.Skipf("engine %s has no nested transactions", env.Engine())
	}
}

func requireDupSort(t *testing.T, env *Env) {
	if !env.caps.DupSort {
		t.Skipf("engine %s has no duplicate keys", env.Engine())
	}
}

// mustPut writes pairs into the named database in one committed txn.
func mustPut(t *testing.T, env *Env, name string, flags uint, pairs ...string) Database {
	t.Helper()
	require.Zero(t, len(pairs)%2)
	db, err := env.CreateDatabase(name, flags)
	require.NoError(t, err)
	require.NoError(t, env.Update(func(txn *Txn) error {
		for i := 0; i < len(pairs); i += 2 {
			if err := txn.Put(db, []byte(pairs[i]), []byte(pairs[i+1]), 0); err != nil {
				return err
			}
		}
		return nil
	}))
	return db
}

func requireCode(t *testing.T, code ErrorCode, err error, msgAndArgs ...any) {
	t.Helper()
	require.Error(t, err, msgAndArgs...)
	require.Equalf(t, code.String(), CodeOf(err).String(), "err: %v", err)
}
