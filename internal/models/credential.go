// Package models defines the core data structures exchanged between clients,
// the sync engine, and the storage backends.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Credential is a single entry of a user's credential store.
type Credential struct {
	// ID is unique within one user's store.
	ID string `json:"id"`
	// Value is an opaque payload, ciphertext from the client's point of view.
	Value string `json:"value"`
}

// IDChange records that a credential submitted under Old was stored under New.
// It is encoded on the wire as a two-element array.
type IDChange struct {
	Old string
	New string
}

// MarshalJSON encodes the change as ["old","new"].
func (c IDChange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{c.Old, c.New})
}

// UnmarshalJSON decodes a ["old","new"] pair.
func (c *IDChange) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("id change: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("id change: want 2 elements, got %d", len(pair))
	}
	c.Old, c.New = pair[0], pair[1]
	return nil
}

var (
	// ErrMissingItem is returned when a Modify or Delete targets an id the store does not hold.
	ErrMissingItem = errors.New("missing credential")
	// ErrExistingUser is returned when bootstrapping a user whose data already exists.
	ErrExistingUser = errors.New("user already initialized")
	// ErrUninitializedUser is returned when a user's salt has never been set.
	ErrUninitializedUser = errors.New("user not initialized")
)
