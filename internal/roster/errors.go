package roster

import (
	"errors"
	"fmt"
)

// ErrInvalidInput indicates a blank or malformed field on a role, task, or
// task map write.
var ErrInvalidInput = errors.New("invalid input")

// NotFoundError indicates a named record does not exist in the store.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// ConflictError indicates a write was rejected because it would leave the
// store inconsistent, such as deleting a role that tasks still reference.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}
