package domain

import "errors"

var (
	// ErrInvalidInput marks a validation-gate or tool-level rejection.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks a missing identity or session.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateIdentity is returned when an email is already registered.
	ErrDuplicateIdentity = errors.New("identity already registered")
	// ErrInvalidCredential is returned when authentication fails on a known identity.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrStorageFailure marks a transient persistence failure.
	ErrStorageFailure = errors.New("storage failure")
	// ErrEngineFailure marks a reasoning engine that produced no usable decision.
	ErrEngineFailure = errors.New("engine failure")
)
