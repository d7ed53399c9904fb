package payments

import "errors"

var (
	ErrBookingNotPayable = errors.New("booking not payable")
	ErrUnknownPayment    = errors.New("payment not found")
	ErrNotRefundable     = errors.New("only completed payments can be refunded")
	ErrForbidden         = errors.New("forbidden")
	ErrAmountNotWhole    = errors.New("amount must be a whole number of currency units")
)
