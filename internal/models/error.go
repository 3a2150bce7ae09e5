package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Validation failures reject the call locally; nothing is written
	ErrValidation = errors.New("invalid attempt data")

	// Backend collaborator failures. Both degrade to the local cache and
	// fail open for the allowed decision.
	ErrNetwork = errors.New("backend unreachable")
	ErrBackend = errors.New("backend rejected the request")

	ErrAccountLocked   = errors.New("account is temporarily locked")
	ErrDeviceNotFound  = errors.New("device not registered")
	ErrCounterDisabled = errors.New("atomic counter not configured")
)
