package vehicles

import "errors"

var (
	ErrPlateTaken     = errors.New("plate number already registered")
	ErrHasBookings    = errors.New("vehicle has open bookings")
	ErrUnknownVehicle = errors.New("vehicle not found")
)
