package model

import "time"

// Booking states.  A booking is always created confirmed; cancelled,
// refunded and transferred are terminal and append-only history.
const (
	BookingStatusConfirmed   = "confirmed"
	BookingStatusCancelled   = "cancelled"
	BookingStatusRefunded    = "refunded"
	BookingStatusTransferred = "transferred"
)

// Payment status values.  Only the status field is tracked; payment
// capture itself happens outside this system.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// Discount types accepted on a booking.
const (
	DiscountTypeReferral  = "referral"
	DiscountTypePromo     = "promo"
	DiscountTypeEarlyBird = "early-bird"
)

// TicketLine is one tier's worth of tickets inside a booking.  The price
// is snapshotted at booking time and must never float with later dynamic
// pricing changes.
type TicketLine struct {
	TierName       string  // booking_tickets.tier_name
	Quantity       uint32  // booking_tickets.quantity
	PricePerTicket float64 // booking_tickets.price_per_ticket
}

// Discount records an optional reduction applied once at creation.
type Discount struct {
	Amount float64 // bookings.discount_amount
	Code   string  // bookings.discount_code
	Type   string  // bookings.discount_type
}

// Refund is populated only when a booking is cancelled.
type Refund struct {
	Requested   bool       // bookings.refund_requested
	RequestedAt *time.Time // bookings.refund_requested_at
	Processed   bool       // bookings.refund_processed
	ProcessedAt *time.Time // bookings.refund_processed_at
	Amount      float64    // bookings.refund_amount
	Reason      string     // bookings.refund_reason
}

// Booking aggregates the ticket lines a user reserved for one event.
type Booking struct {
	ID            uint64 // bookings.id
	Reference     string // bookings.reference
	UserID        uint64 // bookings.user_id
	EventID       uint64 // bookings.event_id
	Tickets       []TicketLine
	TotalAmount   float64 // bookings.total_amount; sum(qty*price) - discount, >= 0
	Discount      Discount
	PaymentStatus string // bookings.payment_status
	Status        string // bookings.booking_status
	QRCode        string // bookings.qr_code (base64 PNG blob)
	Refund        Refund
	CreatedAt     time.Time // bookings.created_at
	UpdatedAt     time.Time // bookings.updated_at
}

// UsedReferralDiscount reports whether a referral discount was actually
// applied to this booking. Only such bookings complete the buyer's
// pending referral and trigger the reward payout.
func (b *Booking) UsedReferralDiscount() bool {
	return b.Discount.Type == DiscountTypeReferral && b.Discount.Amount > 0
}

// CalculateTotal sums the ticket lines, subtracts the discount and floors
// the result at zero.
func (b *Booking) CalculateTotal() float64 {
	total := 0.0
	for _, t := range b.Tickets {
		total += float64(t.Quantity) * t.PricePerTicket
	}
	total -= b.Discount.Amount
	if total < 0 {
		return 0
	}
	return total
}
