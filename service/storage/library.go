package storage

import (
	"github.com/electra-labs/electra/models/electra"
)

// Library is the storage library. It provides composable operations on a
// Badger transaction, so that all writes for one block can be committed as a
// single atomic unit.
type Library struct {
	codec electra.Codec
}

// New returns a new storage library using the given codec.
func New(codec electra.Codec) *Library {
	lib := Library{
		codec: codec,
	}

	return &lib
}
