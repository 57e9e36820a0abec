package engine

import (
	"errors"
	"fmt"
	"syscall"
)

// Error is an engine status carried across the boundary.
type Error struct {
	Code ErrorCode
	Op   string
	Err  error // native error, if any
}

func (e *Error) Error() string {
	msg := e.Code.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("engine: %s: %v", msg, e.Err)
	}
	return "engine: " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode is an MDBX-compatible status code. Positive values are errnos.
type ErrorCode int

// Status codes, matching libmdbx.
const (
	Success         ErrorCode = 0
	KeyExist        ErrorCode = -30799
	NotFound        ErrorCode = -30798
	PageNotFound    ErrorCode = -30797
	Corrupted       ErrorCode = -30796
	Panic           ErrorCode = -30795
	VersionMismatch ErrorCode = -30794
	Invalid         ErrorCode = -30793
	MapFull         ErrorCode = -30792
	DBsFull         ErrorCode = -30791
	ReadersFull     ErrorCode = -30790
	TxnFull         ErrorCode = -30788
	CursorFull      ErrorCode = -30787
	PageFull        ErrorCode = -30786
	UnableExtend    ErrorCode = -30785
	Incompatible    ErrorCode = -30784
	BadRSlot        ErrorCode = -30783
	BadTxn          ErrorCode = -30782
	BadValSize      ErrorCode = -30781
	BadDBI          ErrorCode = -30780
	Problem         ErrorCode = -30779
	Busy            ErrorCode = -30778
	KeyMismatch     ErrorCode = -30418
	TooLarge        ErrorCode = -30417
	ThreadMismatch  ErrorCode = -30416
	TxnOverlapping  ErrorCode = -30415
)

// Errno codes used by drivers.
const (
	EPERM  = ErrorCode(syscall.EPERM)
	ENOENT = ErrorCode(syscall.ENOENT)
	EIO    = ErrorCode(syscall.EIO)
	EACCES = ErrorCode(syscall.EACCES)
	EINVAL = ErrorCode(syscall.EINVAL)
	ENOSPC = ErrorCode(syscall.ENOSPC)
	EROFS  = ErrorCode(syscall.EROFS)
)

var errorMessages = map[ErrorCode]string{
	Success:         "success",
	KeyExist:        "key/data pair already exists",
	NotFound:        "key/data pair not found",
	PageNotFound:    "requested page not found",
	Corrupted:       "database is corrupted",
	Panic:           "fatal environment error",
	VersionMismatch: "database version mismatch",
	Invalid:         "file is not a valid database",
	MapFull:         "environment mapsize limit reached",
	DBsFull:         "environment maxdbs limit reached",
	ReadersFull:     "environment maxreaders limit reached",
	TxnFull:         "transaction has too many dirty pages",
	CursorFull:      "cursor stack overflow",
	PageFull:        "page has no space",
	UnableExtend:    "unable to extend mapping",
	Incompatible:    "incompatible operation or flags",
	BadRSlot:        "reader slot corrupted",
	BadTxn:          "transaction is invalid",
	BadValSize:      "invalid key or value size",
	BadDBI:          "invalid DBI handle",
	Problem:         "unexpected internal error",
	Busy:            "another write transaction is running",
	KeyMismatch:     "key out of order",
	TooLarge:        "key or value too large",
	ThreadMismatch:  "transaction used from another thread",
	TxnOverlapping:  "overlapping transactions",
}

func (c ErrorCode) String() string {
	if c > 0 {
		return syscall.Errno(c).Error()
	}
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return fmt.Sprintf("unknown error code %d", int(c))
}

// NewError creates an Error for op with the given code.
func NewError(op string, code ErrorCode) *Error {
	return &Error{Code: code, Op: op}
}

// WrapError creates an Error for op wrapping a native error.
func WrapError(op string, code ErrorCode, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// Code returns the status code of err: Success for nil, the errno for bare
// syscall errors and Problem for anything else.
func Code(err error) ErrorCode {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return ErrorCode(errno)
	}
	return Problem
}

// IsNotFound reports whether err carries NotFound.
func IsNotFound(err error) bool {
	return Code(err) == NotFound
}
