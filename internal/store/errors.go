package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when a write would violate a uniqueness rule.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUpdateFailed is returned when an update cannot be applied.
	ErrUpdateFailed = errors.New("update failed")

	// ErrDeleteFailed is returned when a delete cannot be applied.
	ErrDeleteFailed = errors.New("delete failed")

	// ErrTransactionFailed is returned when a transaction cannot commit.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrInternal wraps unexpected database failures.
	ErrInternal = errors.New("internal store error")

	// ErrProfileNotFound indicates that the requested profile does not exist.
	ErrProfileNotFound = fmt.Errorf("%w: profile", ErrNotFound)

	// ErrAvatarNotFound indicates that the requested avatar does not exist.
	ErrAvatarNotFound = fmt.Errorf("%w: avatar", ErrNotFound)

	// ErrTaskNotFound indicates that the requested task does not exist.
	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)

	// ErrHandleExists indicates that another profile already uses the handle.
	ErrHandleExists = fmt.Errorf("%w: handle", ErrDuplicate)

	// ErrActiveAvatarExists indicates a second active avatar for one profile.
	ErrActiveAvatarExists = fmt.Errorf("%w: active avatar", ErrDuplicate)
)

// IsNotFoundError reports whether err is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError reports whether err is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// IsInternalError reports whether err is an unexpected store failure.
func IsInternalError(err error) bool {
	return errors.Is(err, ErrInternal)
}

// StoreError adds the entity and operation to a store failure.
type StoreError struct {
	Entity    string // e.g. "avatar", "profile"
	Operation string // e.g. "create", "set_active"
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation on %s failed: %s: %v", e.Operation, e.Entity, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a StoreError.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
