// Package apperr defines the error categories surfaced by the transfer
// engine. Call sites classify with errors.Is and attach detail by wrapping:
//
//	fmt.Errorf("%w: insufficient balance, card id: %d", apperr.ErrStateConflict, id)
package apperr

import "errors"

var (
	// ErrValidation covers malformed or missing request data.
	ErrValidation = errors.New("validation error")
	// ErrAuthorization covers wrong-owner and policy violations.
	ErrAuthorization = errors.New("authorization error")
	// ErrStateConflict covers locked cards, same-card transfers and
	// insufficient balance.
	ErrStateConflict = errors.New("state conflict")
	// ErrVersionConflict signals an optimistic-version clash; sweepers retry
	// it transparently and it is never surfaced to callers.
	ErrVersionConflict = errors.New("version conflict")
	// ErrNotFound signals a missing row.
	ErrNotFound = errors.New("not found")
)
