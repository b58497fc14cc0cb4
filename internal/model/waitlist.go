package model

import "time"

// Waitlist entry states.
const (
	WaitlistStatusActive    = "active"
	WaitlistStatusNotified  = "notified"
	WaitlistStatusExpired   = "expired"
	WaitlistStatusFulfilled = "fulfilled"
)

// WaitlistTTL is the lifetime of an entry from creation; ResponseWindow is
// how long a notified user has to act before the entry is skipped in
// future drains.
const (
	WaitlistTTL    = 7 * 24 * time.Hour
	ResponseWindow = 24 * time.Hour
)

// WaitlistEntry queues a user for a sold-out tier.  A user may hold at
// most one active entry per (event, tier).  Notification is advisory:
// no seats are held for notified users, they book through the normal
// flow and race with everyone else.
type WaitlistEntry struct {
	ID                 uint64     // waitlist_entries.id
	UserID             uint64     // waitlist_entries.user_id
	EventID            uint64     // waitlist_entries.event_id
	TierName           string     // waitlist_entries.tier_name
	Quantity           uint32     // waitlist_entries.quantity
	MaxPrice           float64    // waitlist_entries.max_price
	Status             string     // waitlist_entries.status
	Priority           int32      // waitlist_entries.priority (higher served first)
	NotificationSent   bool       // waitlist_entries.notification_sent
	NotificationSentAt *time.Time // waitlist_entries.notification_sent_at
	ExpiresAt          time.Time  // waitlist_entries.expires_at (creation + 7d)
	ResponseDeadline   time.Time  // waitlist_entries.response_deadline (set eagerly, refreshed on notify)
	CreatedAt          time.Time  // waitlist_entries.created_at

	// UserName/UserEmail are populated by joins for notification sends.
	UserName  string
	UserEmail string
}

// ResponseExpired reports whether a notified entry blew its response
// deadline and should be treated as expired in future drains.
func (w *WaitlistEntry) ResponseExpired(now time.Time) bool {
	return w.Status == WaitlistStatusNotified && now.After(w.ResponseDeadline)
}
