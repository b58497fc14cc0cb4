package model

import "time"

// Event lifecycle states.  Only published events can be booked; deletion
// is forbidden once any booking references the event.
const (
	EventStatusDraft     = "draft"
	EventStatusPublished = "published"
	EventStatusCancelled = "cancelled"
	EventStatusCompleted = "completed"
)

// TicketTier is a named category of tickets for an event with its own
// price and seat pool.  CurrentPrice is derived from BasePrice by the
// pricing engine and is recomputed on read and after reservations; it is
// never authoritative on its own.
//
// Invariant: 0 <= AvailableSeats <= TotalSeats at all times.
type TicketTier struct {
	ID             uint64   // ticket_tiers.id
	EventID        uint64   // ticket_tiers.event_id
	Name           string   // ticket_tiers.name (unique per event)
	BasePrice      float64  // ticket_tiers.base_price
	CurrentPrice   float64  // ticket_tiers.current_price
	TotalSeats     uint32   // ticket_tiers.total_seats
	AvailableSeats uint32   // ticket_tiers.available_seats
	Perks          []string // ticket_tiers.perks (JSON)
}

// CancellationPolicy governs the cancellation workflow: a booking may be
// cancelled only while the event is at least RefundDeadlineHours away, and
// the refund is RefundPercentage of the booking total.
type CancellationPolicy struct {
	RefundDeadlineHours float64 // events.refund_deadline_hours
	RefundPercentage    float64 // events.refund_percentage
}

// DynamicPricing holds the knobs consumed by the pricing engine.
type DynamicPricing struct {
	Enabled             bool    // events.pricing_enabled
	PriceIncreaseFactor float64 // events.price_increase_factor
	DemandThreshold     float64 // events.demand_threshold
}

// Event represents a published happening with tiered ticket inventory.
// The organizer exclusively owns lifecycle transitions
// (draft -> published -> cancelled/completed).
type Event struct {
	ID                 uint64    // events.id
	OrganizerID        uint64    // events.organizer_id
	Title              string    // events.title
	Description        string    // events.description
	Category           string    // events.category
	VenueName          string    // events.venue_name
	VenueCity          string    // events.venue_city
	StartsAt           time.Time // events.starts_at (must be strictly in the future at creation)
	EndsAt             time.Time // events.ends_at (strictly after StartsAt)
	Status             string    // events.status
	CancellationPolicy CancellationPolicy
	DynamicPricing     DynamicPricing
	Tiers              []TicketTier
	CreatedAt          time.Time // events.created_at
	UpdatedAt          time.Time // events.updated_at
}

// Tier returns the tier with the given name (exact match) or nil.
func (e *Event) Tier(name string) *TicketTier {
	for i := range e.Tiers {
		if e.Tiers[i].Name == name {
			return &e.Tiers[i]
		}
	}
	return nil
}

// HoursUntilStart returns the number of hours between now and the event
// start.  Negative once the event has begun.
func (e *Event) HoursUntilStart(now time.Time) float64 {
	return e.StartsAt.Sub(now).Hours()
}

// RefundAllowed reports whether a cancellation at the given instant still
// falls inside the refund window.  The boundary is inclusive: cancelling
// exactly RefundDeadlineHours before the start qualifies.
func (e *Event) RefundAllowed(now time.Time) bool {
	return e.HoursUntilStart(now) >= e.CancellationPolicy.RefundDeadlineHours
}

// RefundAmount computes the refund owed for the given booking total under
// this event's cancellation policy.
func (e *Event) RefundAmount(total float64) float64 {
	return total * (e.CancellationPolicy.RefundPercentage / 100)
}
