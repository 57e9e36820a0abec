package kvsafe

import (
	"errors"
	"fmt"

	"github.com/Giulio2002/kvsafe/internal/engine"
)

// Error is a kvsafe error. Code is the failure category; Op names the
// operation that failed.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Err     error // wrapped engine or OS error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("kvsafe: %s: %v", msg, e.Err)
	}
	return "kvsafe: " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so the Err*Error sentinels work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// ErrorCode is the failure category of an Error.
type ErrorCode int

// Error codes
const (
	// ErrConfiguration: invalid parameters or an engine limit that is part of
	// the configuration (max databases, max readers, key size).
	ErrConfiguration ErrorCode = iota + 1

	// ErrEnvironment: the engine could not open or validate the environment.
	ErrEnvironment

	// ErrStillInUse: the environment has live transactions.
	ErrStillInUse

	// ErrConcurrency: the writer slot or a parent's child slot is taken.
	ErrConcurrency

	// ErrNotFound: the key, database or position does not exist.
	ErrNotFound

	// ErrEndOfRange: a cursor stepped past either end.
	ErrEndOfRange

	// ErrKeyExists: a put refused to overwrite.
	ErrKeyExists

	// ErrNameConflict: a database exists with different flags.
	ErrNameConflict

	// ErrMapFull: storage is exhausted. Fatal to the transaction.
	ErrMapFull

	// ErrReadOnly: a write through a read-only transaction or environment.
	ErrReadOnly

	// ErrInvalidState: a handle used outside its lifetime or in a state that
	// does not allow the operation.
	ErrInvalidState

	// ErrIO: the engine failed to read or write. Fatal to the transaction.
	ErrIO
)

var codeNames = map[ErrorCode]string{
	ErrConfiguration: "configuration error",
	ErrEnvironment:   "environment error",
	ErrStillInUse:    "environment still in use",
	ErrConcurrency:   "concurrency conflict",
	ErrNotFound:      "not found",
	ErrEndOfRange:    "end of range",
	ErrKeyExists:     "key already exists",
	ErrNameConflict:  "database flags conflict",
	ErrMapFull:       "map full",
	ErrReadOnly:      "read-only",
	ErrInvalidState:  "invalid state",
	ErrIO:            "I/O error",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("error code %d", int(c))
}

// NewError creates an Error with the default message for code.
func NewError(code ErrorCode) *Error {
	return &Error{Code: code}
}

func newError(code ErrorCode, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Sentinels for errors.Is.
var (
	ErrConfigurationError = NewError(ErrConfiguration)
	ErrEnvironmentError   = NewError(ErrEnvironment)
	ErrStillInUseError    = NewError(ErrStillInUse)
	ErrConcurrencyError   = NewError(ErrConcurrency)
	ErrNotFoundError      = NewError(ErrNotFound)
	ErrEndOfRangeError    = NewError(ErrEndOfRange)
	ErrKeyExistsError     = NewError(ErrKeyExists)
	ErrNameConflictError  = NewError(ErrNameConflict)
	ErrMapFullError       = NewError(ErrMapFull)
	ErrReadOnlyError      = NewError(ErrReadOnly)
	ErrInvalidStateError  = NewError(ErrInvalidState)
	ErrIOError            = NewError(ErrIO)
)

// CodeOf returns the code of the first *Error in err's chain, or 0.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// IsNotFound reports whether err is ErrNotFound.
func IsNotFound(err error) bool { return CodeOf(err) == ErrNotFound }

// IsEndOfRange reports whether err is ErrEndOfRange.
func IsEndOfRange(err error) bool { return CodeOf(err) == ErrEndOfRange }

// IsKeyExists reports whether err is ErrKeyExists.
func IsKeyExists(err error) bool { return CodeOf(err) == ErrKeyExists }

// IsNameConflict reports whether err is ErrNameConflict.
func IsNameConflict(err error) bool { return CodeOf(err) == ErrNameConflict }

// IsMapFull reports whether err is ErrMapFull.
func IsMapFull(err error) bool { return CodeOf(err) == ErrMapFull }

// IsReadOnly reports whether err is ErrReadOnly.
func IsReadOnly(err error) bool { return CodeOf(err) == ErrReadOnly }

// IsInvalidState reports whether err is ErrInvalidState.
func IsInvalidState(err error) bool { return CodeOf(err) == ErrInvalidState }

// IsConcurrency reports whether err is ErrConcurrency.
func IsConcurrency(err error) bool { return CodeOf(err) == ErrConcurrency }

// IsStillInUse reports whether err is ErrStillInUse.
func IsStillInUse(err error) bool { return CodeOf(err) == ErrStillInUse }

// IsTxnFatal reports whether err ended the transaction it came from.
// MapFull and I/O failures abort the transaction; nothing else does.
func IsTxnFatal(err error) bool {
	code := CodeOf(err)
	return code == ErrMapFull || code == ErrIO
}

// errStage tells translate what the caller was doing, since some engine
// codes mean different things at different times.
type errStage int

const (
	stageTxn errStage = iota
	stageOpen
	stageOpenDB
)

// translate maps an engine failure to the kvsafe taxonomy. It is the only
// place engine status codes are interpreted.
func translate(op string, err error, stage errStage) error {
	if err == nil {
		return nil
	}
	code := engine.Code(err)
	var kc ErrorCode
	switch code {
	case engine.NotFound:
		kc = ErrNotFound
	case engine.KeyExist, engine.KeyMismatch:
		kc = ErrKeyExists
	case engine.MapFull, engine.TxnFull, engine.UnableExtend, engine.ENOSPC:
		kc = ErrMapFull
	case engine.DBsFull, engine.ReadersFull, engine.BadValSize, engine.TooLarge:
		kc = ErrConfiguration
	case engine.Incompatible:
		kc = ErrConfiguration
		if stage == stageOpenDB {
			kc = ErrNameConflict
		}
	case engine.BadTxn, engine.BadDBI, engine.ThreadMismatch, engine.BadRSlot:
		kc = ErrInvalidState
	case engine.Busy, engine.TxnOverlapping:
		kc = ErrConcurrency
	case engine.EACCES, engine.EPERM, engine.EROFS:
		kc = ErrReadOnly
		if stage == stageOpen {
			kc = ErrEnvironment
		}
	case engine.VersionMismatch, engine.Invalid, engine.Corrupted, engine.Panic,
		engine.PageNotFound, engine.CursorFull, engine.PageFull:
		kc = ErrEnvironment
	default:
		kc = ErrIO
		if stage == stageOpen {
			kc = ErrEnvironment
		}
	}
	return &Error{Code: kc, Op: op, Err: err}
}
