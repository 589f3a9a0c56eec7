package model

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDate        = errors.New("invalid date, expected YYYY-MM-DD")
	ErrEndBeforeStart     = errors.New("end date is before start date")
	ErrEmptyTitle         = errors.New("title is required")
	ErrUnknownKind        = errors.New("unknown event kind")
	ErrHolidayReadOnly    = errors.New("holidays cannot be created, edited or deleted")
	ErrInvalidAdvanceDays = errors.New("advance days must not be negative")
	ErrUnknownSetting     = errors.New("unknown settings field")
)

// ValidationError ties a rejected value to the field it came from.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidation reports whether err stems from rejected user input.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) || errors.Is(err, ErrInvalidDate)
}
