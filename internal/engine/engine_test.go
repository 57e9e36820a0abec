package engine

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubDriver struct{ name string }

func (d stubDriver) Name() string                          { return d.name }
func (stubDriver) Caps() Caps                              { return Caps{} }
func (stubDriver) DataFile(path string, flags uint) string { return path }
func (stubDriver) Open(string, Options) (Env, error)       { return nil, NewError("open", Problem) }

func TestRegistry(t *testing.T) {
	Register(stubDriver{name: "stub-a"})
	Register(stubDriver{name: "stub-b"})

	d, ok := Lookup("stub-a")
	require.True(t, ok)
	require.Equal(t, "stub-a", d.Name())
	_, ok = Lookup("missing")
	require.False(t, ok)

	names := Drivers()
	require.Contains(t, names, "stub-a")
	require.Contains(t, names, "stub-b")
	require.IsIncreasing(t, names)

	require.Panics(t, func() { Register(stubDriver{name: "stub-a"}) })
}

func TestCode(t *testing.T) {
	require.Equal(t, Success, Code(nil))
	require.Equal(t, NotFound, Code(NewError("get", NotFound)))
	require.Equal(t, MapFull, Code(fmt.Errorf("commit: %w", NewError("commit", MapFull))))
	require.Equal(t, EACCES, Code(syscall.EACCES))
	require.Equal(t, Problem, Code(errors.New("boom")))
	require.True(t, IsNotFound(NewError("get", NotFound)))
}

func TestErrorString(t *testing.T) {
	err := WrapError("open", EACCES, syscall.EACCES)
	require.Contains(t, err.Error(), "open")
	require.ErrorIs(t, err, syscall.EACCES)
	require.Equal(t, "key/data pair not found", NotFound.String())
	require.Contains(t, ErrorCode(-1).String(), "unknown")
}

func TestOps(t *testing.T) {
	require.Equal(t, "set-range", SetRange.String())
	require.Equal(t, "unknown", Op(1000).String())
	require.True(t, NextDup.IsDupOp())
	require.False(t, Next.IsDupOp())
}
