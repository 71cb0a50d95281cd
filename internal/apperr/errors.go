// Package apperr holds the sentinel errors shared across tramite packages.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	ErrDocumentTooLarge = errors.New("document too large")
	ErrNoEntries        = errors.New("no entries found")
	ErrInvalidEntry     = errors.New("invalid entry")
)
