package links

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for missing records, and by the resolver for
	// retired ones as well.
	ErrNotFound = errors.New("link not found")

	// ErrInvalidState is returned when a retired record is mutated.
	ErrInvalidState = errors.New("link is retired")

	// ErrDuplicateCode is returned by Store.Insert when the code is taken by any
	// record, active or retired.
	ErrDuplicateCode = errors.New("short code already exists")

	// ErrForbidden is returned when the caller does not own the record.
	ErrForbidden = errors.New("caller does not own link")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
