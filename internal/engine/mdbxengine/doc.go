// Package mdbxengine implements the engine boundary on top of libmdbx via
// mdbx-go. It needs cgo; without it the package is empty and the driver is
// not registered.
//
// mdbx-go opens every environment with NoTLS, so read transactions may move
// between goroutines. Write transactions may not: a top-level write
// transaction locks its goroutine to the OS thread from begin until commit
// or abort.
package mdbxengine

// Name is the driver name.
const Name = "mdbx"
