package email

import (
	"context"

	"safarifleet.com/app/internal/mailer"
	"safarifleet.com/app/internal/shared/money"
)

// Notifier composes and sends the transactional emails. It only depends on
// primitives so every module can call it without import knots.
type Notifier struct {
	mail     mailer.Service
	fromAddr string
	fromName string
}

func NewNotifier(mail mailer.Service, fromAddr, fromName string) *Notifier {
	return &Notifier{mail: mail, fromAddr: fromAddr, fromName: fromName}
}

func (n *Notifier) send(ctx context.Context, to, subject, text, html string) error {
	return n.mail.Send(ctx, mailer.Email{
		From:     n.fromAddr,
		FromName: n.fromName,
		To:       []string{to},
		Subject:  subject,
		TextBody: text,
		HTMLBody: html,
	})
}

func (n *Notifier) SendPaymentReceipt(ctx context.Context, to, name, bookingID string, amountCents int64, currency, receiptRef string) error {
	amount := money.Format(currency, amountCents)
	subject := "Payment received - SafariFleet"

	text := "Hello " + name + ",\n\n" +
		"We received your payment of " + amount + " for booking " + shortID(bookingID) + ".\n"
	if receiptRef != "" {
		text += "Reference: " + receiptRef + "\n"
	}
	text += "\nYour booking is confirmed. Safe travels!\n\nThe SafariFleet team"

	html := `
<html>
  <body style="font-family: sans-serif;">
    <h2>Payment received</h2>
    <p>Hello ` + name + `,</p>
    <p>We received your payment of <strong>` + amount + `</strong> for booking <strong>#` + shortID(bookingID) + `</strong>.</p>`
	if receiptRef != "" {
		html += `
    <p>Reference: ` + receiptRef + `</p>`
	}
	html += `
    <p>Your booking is confirmed. Safe travels!</p>
    <p>The SafariFleet team</p>
  </body>
</html>
`
	return n.send(ctx, to, subject, text, html)
}

func (n *Notifier) SendBookingConfirmation(ctx context.Context, to, name, bookingID, vehicleName, startDate, endDate string, totalCents int64, currency string) error {
	amount := money.Format(currency, totalCents)
	subject := "Booking confirmed - SafariFleet"

	text := "Hello " + name + ",\n\n" +
		"Your booking " + shortID(bookingID) + " for " + vehicleName + " (" + startDate + " to " + endDate + ") is confirmed.\n" +
		"Total: " + amount + "\n\n" +
		"Please carry your ID and driving licence at pickup.\n\nThe SafariFleet team"

	html := `
<html>
  <body style="font-family: sans-serif;">
    <h2>Booking confirmed</h2>
    <p>Hello ` + name + `,</p>
    <p>Your booking <strong>#` + shortID(bookingID) + `</strong> for ` + vehicleName + ` is confirmed.</p>
    <p><strong>Dates:</strong> ` + startDate + ` to ` + endDate + `</p>
    <p><strong>Total:</strong> ` + amount + `</p>
    <p>Please carry your ID and driving licence at pickup.</p>
    <p>The SafariFleet team</p>
  </body>
</html>
`
	return n.send(ctx, to, subject, text, html)
}

func (n *Notifier) SendWelcome(ctx context.Context, to, name string) error {
	subject := "Welcome to SafariFleet"

	text := "Hello " + name + ",\n\nThanks for joining SafariFleet. Browse the fleet and book your next trip.\n\nThe SafariFleet team"
	html := `
<html>
  <body style="font-family: sans-serif;">
    <h2>Welcome!</h2>
    <p>Hello ` + name + `,</p>
    <p>Thanks for joining SafariFleet. Browse the fleet and book your next trip.</p>
    <p>The SafariFleet team</p>
  </body>
</html>
`
	return n.send(ctx, to, subject, text, html)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
