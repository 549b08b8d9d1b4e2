package signet

import (
	"errors"
	"fmt"
)

// ValidationError reports a required input that is missing, empty, or not
// in its closed set of allowed values. It is raised before any store or
// cryptographic call, so no partial side effects occur on invalid input.
type ValidationError struct {
	// Field is the name of the offending parameter.
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: field %q is missing or not allowed", e.Field)
}

// AlreadyExistsError is raised by key creation and import when the target
// identifier already has a record. Existing key material is never silently
// overwritten by those operations.
type AlreadyExistsError struct {
	// ID is the conflicting composite identifier.
	ID string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("record %q already exists", e.ID)
}

// NotFoundError is raised by any operation that requires an existing key or
// secret record and finds none.
type NotFoundError struct {
	// ID is the missing composite identifier.
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("record %q not found", e.ID)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsAlreadyExists reports whether err is (or wraps) an AlreadyExistsError.
func IsAlreadyExists(err error) bool {
	var target *AlreadyExistsError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}
