//go:build cgo

package mdbxengine

import (
	"errors"
	"syscall"

	"github.com/erigontech/mdbx-go/mdbx"

	"github.com/Giulio2002/kvsafe/internal/engine"
)

// wrap converts an mdbx-go error into an *engine.Error. mdbx-go reports
// status codes as *mdbx.OpError around an mdbx.Errno or a syscall.Errno.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case mdbx.IsNotFound(err):
		return engine.WrapError(op, engine.NotFound, err)
	case mdbx.IsKeyExists(err):
		return engine.WrapError(op, engine.KeyExist, err)
	case mdbx.IsMapFull(err):
		return engine.WrapError(op, engine.MapFull, err)
	}

	cause := err
	var oe *mdbx.OpError
	if errors.As(err, &oe) {
		cause = oe.Errno
	}
	var errno mdbx.Errno
	if errors.As(cause, &errno) {
		return engine.WrapError(op, engine.ErrorCode(errno), err)
	}
	var sysErr syscall.Errno
	if errors.As(cause, &sysErr) {
		return engine.WrapError(op, engine.ErrorCode(sysErr), err)
	}
	return engine.WrapError(op, engine.Problem, err)
}
