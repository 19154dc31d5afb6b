package apperr

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrNoDocument  = errors.New("no active document")
	ErrMissingDeck = errors.New("metadata heading has no deck")
)
