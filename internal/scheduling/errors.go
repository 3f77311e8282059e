package scheduling

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the referenced appointment does not exist.
	ErrNotFound = errors.New("appointment not found")

	// ErrSlotConflict is returned when a booking or reschedule loses the race
	// for a time slot. Callers should re-query availability and retry.
	ErrSlotConflict = errors.New("time slot is no longer available")

	// ErrForbidden is returned when the caller is authenticated but not
	// permitted to perform the operation on this appointment.
	ErrForbidden = errors.New("not permitted for this appointment")

	// ErrInvalidTransition is returned for status changes outside the
	// lifecycle table.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidDoctor is returned when the doctor id does not resolve to an
	// active user with the doctor role.
	ErrInvalidDoctor = errors.New("doctor not found or not active")

	// ErrInvalidPatient is returned when the patient id does not resolve to a
	// user with the patient role.
	ErrInvalidPatient = errors.New("patient not found")

	// ErrPastDate is returned when the appointment date is not strictly in
	// the future.
	ErrPastDate = errors.New("appointment date must be in the future")

	// ErrInvalidTimeRange is returned when the slot start does not precede
	// its end.
	ErrInvalidTimeRange = errors.New("time slot start must be before end")

	// ErrStoreUnavailable wraps storage failures that are not part of the
	// domain contract. The detail is logged server-side only.
	ErrStoreUnavailable = errors.New("scheduling store unavailable")
)

// ValidationError reports a field-level input problem so the caller can
// highlight the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidationError(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
