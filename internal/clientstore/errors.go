package clientstore

import "errors"

// Sentinel errors for the client store. Callers use errors.Is to decide
// whether a failure is recoverable for the current entity.
var (
	// ErrNotFound indicates the addressed client row does not exist.
	ErrNotFound = errors.New("client not found")

	// ErrAmbiguous indicates more than one row carries the same client ID.
	// The store is inconsistent; the sync pass must not guess which row
	// to touch.
	ErrAmbiguous = errors.New("ambiguous client id")
)
