// Package queue defines the email messages exchanged over the broker and
// the background consumer that delivers them.
package queue

import "time"

// Queue the email worker consumes from. Durable, so notifications
// survive broker restarts.
const EmailQueueName = "notifications.email"

// Template names understood by the mail renderer.
const (
	TemplateWelcome             = "welcome"
	TemplateBookingConfirmation = "booking-confirmation"
	TemplateBookingCancellation = "booking-cancellation"
	TemplateWaitlistNotify      = "waitlist-notification"
)

// EmailMessage is the payload published for every outbound email. Data
// carries template-specific fields (booking reference, refund amount,
// response deadline) so the consumer never queries the database.
type EmailMessage struct {
	To         string                 `json:"to"`
	Template   string                 `json:"template"`
	Subject    string                 `json:"subject"`
	Data       map[string]interface{} `json:"data"`
	EnqueuedAt time.Time              `json:"enqueued_at"`
}
