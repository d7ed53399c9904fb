package mpesa

import "safarifleet.com/app/internal/modules/payments"

// Result codes observed from the STK push API. Anything unrecognized maps
// to failed rather than pending so an unknown code can never hold a
// payment open forever.
func mapResultCode(code string) payments.MobileMoneyStatus {
	switch code {
	case "0":
		return payments.MobileMoneyCompleted
	case "1032": // request cancelled by user
		return payments.MobileMoneyCancelled
	case "1037": // DS timeout, user cannot be reached
		return payments.MobileMoneyTimeout
	case "1019": // transaction expired, no response from user
		return payments.MobileMoneyTimeout
	default:
		return payments.MobileMoneyFailed
	}
}
