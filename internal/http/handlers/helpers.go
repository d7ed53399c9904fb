package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"safarifleet.com/app/internal/http/middleware"
	"safarifleet.com/app/internal/http/validation"
	"safarifleet.com/app/internal/modules/bookings"
	"safarifleet.com/app/internal/modules/images"
	"safarifleet.com/app/internal/modules/payments"
	"safarifleet.com/app/internal/modules/users"
	"safarifleet.com/app/internal/modules/vehicles"
	"safarifleet.com/app/internal/shared/apperr"
	"safarifleet.com/app/internal/shared/phone"
)

const dateLayout = "2006-01-02"

// fail maps known domain errors to their HTTP shape and hands the result to
// the error-handler middleware. Everything unrecognized stays a 500.
func fail(c *gin.Context, err error) {
	middleware.Fail(c, mapDomainError(err))
}

func mapDomainError(err error) error {
	switch {
	case errors.Is(err, users.ErrEmailTaken):
		return apperr.ConflictErr("Email already registered.")
	case errors.Is(err, users.ErrInvalidCredentials):
		return apperr.UnauthorizedErr("Invalid email or password.")

	case errors.Is(err, vehicles.ErrUnknownVehicle):
		return apperr.NotFoundErr("Vehicle not found.")
	case errors.Is(err, vehicles.ErrPlateTaken):
		return apperr.ConflictErr("Plate number already registered.")
	case errors.Is(err, vehicles.ErrHasBookings):
		return apperr.ConflictErr("Vehicle has open bookings.")
	case errors.Is(err, images.ErrUnknownImage):
		return apperr.NotFoundErr("Image not found.")

	case errors.Is(err, bookings.ErrUnknownBooking):
		return apperr.NotFoundErr("Booking not found.")
	case errors.Is(err, bookings.ErrEndBeforeStart):
		return apperr.InvalidErr("Return date must be after pickup date.", nil)
	case errors.Is(err, bookings.ErrStartInPast):
		return apperr.InvalidErr("Pickup date is in the past.", nil)
	case errors.Is(err, bookings.ErrVehicleUnavailable):
		return apperr.ConflictErr("Vehicle is not available for rental.")
	case errors.Is(err, bookings.ErrDateConflict):
		return apperr.ConflictErr("Vehicle is already booked for this date range.")
	case errors.Is(err, bookings.ErrInvalidTransition):
		return apperr.InvalidErr("Booking status cannot change that way.", nil)
	case errors.Is(err, bookings.ErrNotDeletable):
		return apperr.InvalidErr("Booking can no longer be deleted.", nil)
	case errors.Is(err, bookings.ErrForbidden):
		return apperr.ForbiddenErr("You do not have access to this booking.")

	case errors.Is(err, payments.ErrUnknownPayment):
		return apperr.NotFoundErr("Payment not found.")
	case errors.Is(err, payments.ErrBookingNotPayable):
		return apperr.ConflictErr("Booking is not payable.")
	case errors.Is(err, payments.ErrNotRefundable):
		return apperr.InvalidErr("Only completed payments can be refunded.", nil)
	case errors.Is(err, payments.ErrAmountNotWhole):
		return apperr.InvalidErr("Amount must be a whole number of shillings.", nil)
	case errors.Is(err, payments.ErrForbidden):
		return apperr.ForbiddenErr("You do not have access to this payment.")

	case errors.Is(err, phone.ErrInvalid):
		return apperr.InvalidErr("Phone number is not a valid Kenyan mobile number.", map[string]string{"phone": "Use format 07XXXXXXXX or 2547XXXXXXXX."})

	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFoundErr("Not found.")
	}
	return apperr.Wrap(err)
}

func failBind(c *gin.Context, err error, dst any) {
	middleware.Fail(c, apperr.InvalidErr("Validation failed.", validation.FromBindError(err, dst)))
}

func identity(c *gin.Context) middleware.Identity {
	u, _ := middleware.CurrentUser(c)
	return u
}

func isAdmin(c *gin.Context) bool {
	u, ok := middleware.CurrentUser(c)
	return ok && u.Role == users.RoleAdmin
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func parseDate(raw string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, raw, time.Local)
}

type pageData struct {
	Items    any   `json:"items"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

func paged(items any, page, size int, total int64) pageData {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	return pageData{Items: items, Page: page, PageSize: size, Total: total}
}
