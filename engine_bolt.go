package kvsafe

import (
	// Registers the "bolt" engine.
	_ "github.com/Giulio2002/kvsafe/internal/engine/boltengine"
)
