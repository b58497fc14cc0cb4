package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewReferralCode derives a shareable referral code from the user's name
// plus a random suffix, e.g. "janedoe-1b9f3c". Lowercased, whitespace
// stripped, so codes stay readable when shared.
func NewReferralCode(name string) string {
	base := strings.ToLower(strings.Join(strings.Fields(name), ""))
	if base == "" {
		base = "user"
	}
	if len(base) > 20 {
		base = base[:20]
	}
	return base + "-" + uuid.NewString()[:6]
}

// NewBookingReference returns a human-quotable booking reference like
// "EH-9F0A2C4D". Uniqueness is enforced by the database.
func NewBookingReference() string {
	return "EH-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
