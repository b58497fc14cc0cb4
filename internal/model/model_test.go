package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBookingCalculateTotal(t *testing.T) {
	b := Booking{
		Tickets: []TicketLine{
			{TierName: "General", Quantity: 2, PricePerTicket: 50},
			{TierName: "VIP", Quantity: 1, PricePerTicket: 120},
		},
		Discount: Discount{Amount: 11, Code: "alice123", Type: DiscountTypeReferral},
	}
	assert.Equal(t, 209.0, b.CalculateTotal())
}

func TestBookingCalculateTotalNeverNegative(t *testing.T) {
	b := Booking{
		Tickets:  []TicketLine{{TierName: "General", Quantity: 1, PricePerTicket: 10}},
		Discount: Discount{Amount: 25},
	}
	assert.Equal(t, 0.0, b.CalculateTotal())
}

func TestUsedReferralDiscount(t *testing.T) {
	var b Booking
	assert.False(t, b.UsedReferralDiscount())

	b.Discount = Discount{Amount: 5, Code: "alice123", Type: DiscountTypeReferral}
	assert.True(t, b.UsedReferralDiscount())

	// Other discount kinds never complete a referral.
	b.Discount.Type = DiscountTypePromo
	assert.False(t, b.UsedReferralDiscount())

	// Neither does a referral code that ended up applying nothing.
	b.Discount = Discount{Code: "alice123", Type: DiscountTypeReferral}
	assert.False(t, b.UsedReferralDiscount())
}

func TestBookingDiscountBound(t *testing.T) {
	// 5% until the $25 cap kicks in at a $500 total.
	assert.Equal(t, 5.0, BookingDiscount(100))
	assert.Equal(t, 25.0, BookingDiscount(500))
	assert.Equal(t, 25.0, BookingDiscount(10000))
	assert.Equal(t, 0.0, BookingDiscount(0))
}

func TestCalculateRewardsCaps(t *testing.T) {
	referrer, referee := CalculateRewards(200)
	assert.Equal(t, 20.0, referrer.Amount)
	assert.Equal(t, 10.0, referee.Amount)

	// Caps: $50 referrer, $25 referee.
	referrer, referee = CalculateRewards(2000)
	assert.Equal(t, 50.0, referrer.Amount)
	assert.Equal(t, 25.0, referee.Amount)
	assert.Equal(t, RewardTypeFixed, referrer.Type)
	assert.False(t, referrer.Claimed)
}

func TestRefundAllowedBoundary(t *testing.T) {
	now := time.Now().UTC()
	ev := Event{CancellationPolicy: CancellationPolicy{RefundDeadlineHours: 24, RefundPercentage: 80}}

	ev.StartsAt = now.Add(time.Duration(23.99 * float64(time.Hour)))
	assert.False(t, ev.RefundAllowed(now), "23.99h before start is past the 24h deadline")

	ev.StartsAt = now.Add(time.Duration(24.01 * float64(time.Hour)))
	assert.True(t, ev.RefundAllowed(now))

	ev.StartsAt = now.Add(24 * time.Hour)
	assert.True(t, ev.RefundAllowed(now), "exactly at the deadline still qualifies")
}

func TestRefundAmount(t *testing.T) {
	ev := Event{CancellationPolicy: CancellationPolicy{RefundDeadlineHours: 24, RefundPercentage: 80}}
	assert.Equal(t, 160.0, ev.RefundAmount(200))
	ev.CancellationPolicy.RefundPercentage = 0
	assert.Equal(t, 0.0, ev.RefundAmount(200))
}

func TestEventTierLookupIsExact(t *testing.T) {
	ev := Event{Tiers: []TicketTier{{Name: "General"}, {Name: "VIP"}}}
	assert.NotNil(t, ev.Tier("VIP"))
	assert.Nil(t, ev.Tier("vip"))
	assert.Nil(t, ev.Tier("Balcony"))
}

func TestWaitlistResponseExpired(t *testing.T) {
	now := time.Now().UTC()
	w := WaitlistEntry{Status: WaitlistStatusNotified, ResponseDeadline: now.Add(-time.Minute)}
	assert.True(t, w.ResponseExpired(now))

	w.ResponseDeadline = now.Add(time.Hour)
	assert.False(t, w.ResponseExpired(now))

	// Deadline only matters once the user has been notified.
	w = WaitlistEntry{Status: WaitlistStatusActive, ResponseDeadline: now.Add(-time.Hour)}
	assert.False(t, w.ResponseExpired(now))
}

func TestReferralExpired(t *testing.T) {
	now := time.Now().UTC()
	r := Referral{Status: ReferralStatusPending, ExpiresAt: now.Add(-time.Second)}
	assert.True(t, r.Expired(now))
	r.ExpiresAt = now.Add(ReferralTTL)
	assert.False(t, r.Expired(now))
}
