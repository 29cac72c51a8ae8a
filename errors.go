package stockwise

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("stockwise: not found")
	ErrAlreadyExists = errors.New("stockwise: already exists")
	ErrInvalidInput  = errors.New("stockwise: invalid input")
	ErrUnauthorized  = errors.New("stockwise: unauthorized")

	// Item errors
	ErrItemNotFound    = errors.New("stockwise: item not found")
	ErrItemIDExhausted = errors.New("stockwise: next item id collides with an existing item")
	ErrVersionConflict = errors.New("stockwise: item was modified concurrently")

	// Record errors
	ErrReceiptNotFound     = errors.New("stockwise: order history not found")
	ErrUsageNotFound       = errors.New("stockwise: use history not found")
	ErrRequirementNotFound = errors.New("stockwise: requirement not found")
	ErrDuplicateLine       = errors.New("stockwise: item listed more than once")

	// Account errors
	ErrUserNotFound      = errors.New("stockwise: user not found")
	ErrUsernameTaken     = errors.New("stockwise: username already exists")
	ErrEmailTaken        = errors.New("stockwise: email already exists")
	ErrIncorrectPassword = errors.New("stockwise: incorrect password")
	ErrIncorrectAnswer   = errors.New("stockwise: incorrect security answer")

	// Store errors
	ErrStoreClosed     = errors.New("stockwise: store is closed")
	ErrMigrationFailed = errors.New("stockwise: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("stockwise: validation failed for %s: %s", e.Field, e.Message)
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "stockwise: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = strings.TrimPrefix(err.Error(), "stockwise: ")
	}
	return fmt.Sprintf("stockwise: %d errors occurred: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error {
	return e.Errors
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// Err returns nil when nothing was collected, the error itself otherwise.
func (e MultiError) Err() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrReceiptNotFound) ||
		errors.Is(err, ErrUsageNotFound) ||
		errors.Is(err, ErrRequirementNotFound) ||
		errors.Is(err, ErrUserNotFound)
}

// IsConflict returns true if the error reports a uniqueness or version clash.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrUsernameTaken) ||
		errors.Is(err, ErrEmailTaken) ||
		errors.Is(err, ErrItemIDExhausted) ||
		errors.Is(err, ErrVersionConflict)
}

// IsValidation returns true if the error was caused by bad caller input.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrDuplicateLine)
}

// IsAuth returns true if the error is a credential failure.
func IsAuth(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrIncorrectPassword) ||
		errors.Is(err, ErrIncorrectAnswer)
}

// IsRetryable returns true if the operation can be retried as is.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
