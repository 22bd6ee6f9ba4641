package procurement

import (
	"errors"
	"fmt"

	"github.com/odyssey-erp/odyssey-pharmacy/internal/packing"
)

var (
	// ErrInvalidRequest indicates malformed input.
	ErrInvalidRequest = errors.New("procurement: invalid request")
	// ErrInvalidPacking indicates a non-positive packing triple.
	ErrInvalidPacking = packing.ErrInvalidPacking
	// ErrNotFound indicates a referenced record is missing.
	ErrNotFound = errors.New("procurement: not found")
	// ErrInvalidTransition indicates an approval change from a terminal state.
	ErrInvalidTransition = errors.New("procurement: invalid state transition")
	// ErrPersistence indicates a storage failure; the unit of work was rolled back.
	ErrPersistence = errors.New("procurement: persistence failure")
)

// MissingPackingField reports an absent packing input.
type MissingPackingField struct {
	Field string
}

func (e *MissingPackingField) Error() string {
	return fmt.Sprintf("procurement: missing packing field %s", e.Field)
}

// Is lets MissingPackingField match ErrInvalidRequest.
func (e *MissingPackingField) Is(target error) bool {
	return target == ErrInvalidRequest
}

// FieldError ties a validation failure to an input field.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func fieldErr(field string, err error) error {
	return &FieldError{Field: field, Err: err}
}

func fieldErrf(field string, sentinel error, format string, args ...any) error {
	return &FieldError{Field: field, Err: fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...)}
}

// ItemValidationError reports the first failing item by 1-based position.
type ItemValidationError struct {
	Index int
	Field string
	Err   error
}

func (e *ItemValidationError) Error() string {
	return fmt.Sprintf("procurement: item %d: %s: %v", e.Index, e.Field, e.Err)
}

func (e *ItemValidationError) Unwrap() error {
	return e.Err
}

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
