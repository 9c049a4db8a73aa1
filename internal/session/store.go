// Package session persists the bearer credential of the client between runs.
//
// A Store holds exactly one slot, named "token". Presence of a credential
// says nothing about its validity; only the backend can decide that.
package session

import (
	"context"

	"github.com/mdobak/go-xerrors"
)

// SlotName is the key every backend stores the credential under.
const SlotName = "token"

var ErrUnsupportedStore = xerrors.Message("unsupported session store")

type Store interface {
	// Save overwrites the slot. Writes are last-writer-wins.
	Save(ctx context.Context, credential string) error
	// Read returns the stored credential and whether one is present.
	Read(ctx context.Context) (string, bool, error)
	// Clear empties the slot. Clearing an empty slot is not an error.
	Clear(ctx context.Context) error
	Close() error
}
