package boltengine

import (
	"errors"
	"syscall"

	berrors "go.etcd.io/bbolt/errors"

	"github.com/Giulio2002/kvsafe/internal/engine"
)

// boltCodes maps bbolt sentinel errors onto MDBX status codes.
var boltCodes = []struct {
	err  error
	code engine.ErrorCode
}{
	{berrors.ErrTimeout, engine.Busy},
	{berrors.ErrInvalid, engine.Invalid},
	{berrors.ErrVersionMismatch, engine.VersionMismatch},
	{berrors.ErrChecksum, engine.Corrupted},
	{berrors.ErrDatabaseNotOpen, engine.BadTxn},
	{berrors.ErrTxClosed, engine.BadTxn},
	{berrors.ErrDatabaseReadOnly, engine.EACCES},
	{berrors.ErrTxNotWritable, engine.EACCES},
	{berrors.ErrBucketNotFound, engine.NotFound},
	{berrors.ErrBucketExists, engine.KeyExist},
	{berrors.ErrBucketNameRequired, engine.BadValSize},
	{berrors.ErrKeyRequired, engine.BadValSize},
	{berrors.ErrKeyTooLarge, engine.BadValSize},
	{berrors.ErrValueTooLarge, engine.BadValSize},
	{berrors.ErrIncompatibleValue, engine.Incompatible},
}

// wrap converts a bbolt or OS error into an *engine.Error.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, bc := range boltCodes {
		if errors.Is(err, bc.err) {
			return engine.WrapError(op, bc.code, err)
		}
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return engine.WrapError(op, engine.ErrorCode(errno), err)
	}
	return engine.WrapError(op, engine.Problem, err)
}
