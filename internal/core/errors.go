package core

import (
	"errors"
	"fmt"

	"healthtrack/pkg/domain"
)

// ErrNotFound is returned when a referenced entity does not exist.
type ErrNotFound struct {
	Entity domain.EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// IsNotFound reports whether err wraps an ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// ErrNoUsers is returned when the dataset holds no user to act for.
var ErrNoUsers = errors.New("no users in dataset")

// ErrConditionNotSaved is the user-facing failure of SaveCondition. The
// underlying cause is logged and reachable through errors.As/errors.Is.
var ErrConditionNotSaved = errors.New("the condition could not be saved; check the data and try again")

// OperationError pairs a user-facing error with the internal cause.
type OperationError struct {
	Public error
	Cause  error
}

func (e *OperationError) Error() string { return e.Public.Error() }

// Unwrap exposes both the public sentinel and the cause to errors.Is/As.
func (e *OperationError) Unwrap() []error { return []error{e.Public, e.Cause} }
