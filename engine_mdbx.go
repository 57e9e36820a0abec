//go:build cgo

package kvsafe

import (
	// Registers the "mdbx" engine.
	_ "github.com/Giulio2002/kvsafe/internal/engine/mdbxengine"
)
