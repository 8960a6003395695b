package services

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the requested row does not exist. Callers
// translate it for their layer: the orchestrator treats a missing
// profile as first contact, the API maps it to 404.
var ErrNotFound = errors.New("entity not found")

// ValidationError reports a store call rejected before reaching the
// database.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
