package bookings

import "errors"

var (
	ErrUnknownBooking     = errors.New("booking not found")
	ErrEndBeforeStart     = errors.New("return date must be after pickup date")
	ErrStartInPast        = errors.New("pickup date is in the past")
	ErrVehicleUnavailable = errors.New("vehicle unavailable")
	ErrDateConflict       = errors.New("vehicle already booked for this date range")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidTransition  = errors.New("invalid booking status transition")
	ErrNotDeletable       = errors.New("booking can no longer be deleted")
)
