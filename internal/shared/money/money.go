package money

import "fmt"

// Format renders a cents amount with its currency for human-facing text.
func Format(currency string, cents int64) string {
	major := float64(cents) / 100.0
	switch currency {
	case "KES":
		return fmt.Sprintf("KSh %.2f", major)
	case "USD":
		return fmt.Sprintf("$%.2f", major)
	case "EUR":
		return fmt.Sprintf("€%.2f", major)
	default:
		return fmt.Sprintf("%.2f %s", major, currency)
	}
}
