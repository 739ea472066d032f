package admin

import "errors"

var (
	// ErrNotFound is returned by repositories when the addressed row does not exist.
	ErrNotFound = errors.New("admin: not found")
	// ErrDuplicateEmail is returned when an insert violates the unique email constraint.
	ErrDuplicateEmail = errors.New("admin: duplicate email")
	// ErrAlreadyResolved is returned when a conditional status transition finds the
	// request in a non-pending state.
	ErrAlreadyResolved = errors.New("admin: request already resolved")
	// ErrUnknownAction is returned when a stored action tag has no matching variant.
	ErrUnknownAction = errors.New("admin: unknown action")
)
