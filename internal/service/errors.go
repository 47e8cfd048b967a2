package service

import "errors"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	// ErrProvider covers an unreachable payment provider and sessions it
	// does not know.
	ErrProvider = errors.New("payment provider error")
)
