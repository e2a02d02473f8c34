package utils

import "errors"

// Error kinds surfaced by the commitment pipeline. Callers match them with
// errors.Is; components wrap them with fmt.Errorf("...: %w", ...) to attach
// context. Every rejection happens before any state mutation.
var (
	ErrValidation        = errors.New("validation error")
	ErrEmptyInput        = errors.New("empty input")
	ErrDuplicate         = errors.New("duplicate entry")
	ErrUnauthorized      = errors.New("unauthorized caller")
	ErrProofVerification = errors.New("proof verification failed")
	ErrNotFound          = errors.New("not found")
)
