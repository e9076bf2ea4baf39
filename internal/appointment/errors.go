package appointment

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrInvalidProvider     = errors.New("provider is not registered")
	ErrPastDate            = errors.New("past dates are not permitted")
	ErrSlotUnavailable     = errors.New("appointment date is not available")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrForbidden           = errors.New("only the requester may cancel this appointment")
	ErrTooLateToCancel     = errors.New("appointments can only be cancelled ahead of the cutoff")
	ErrDispatchFailed      = errors.New("cancellation mail could not be queued")
	ErrStorage             = errors.New("storage unavailable")
)

type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ValidationError lists every input field that failed. It matches ErrValidation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + " (" + f.Rule + ")"
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
