package model

import (
	"math"
	"time"
)

// Referral states.
const (
	ReferralStatusPending   = "pending"
	ReferralStatusCompleted = "completed"
	ReferralStatusExpired   = "expired"
)

// Reward value types.
const (
	RewardTypePercentage = "percentage"
	RewardTypeFixed      = "fixed"
)

// ReferralTTL is how long a pending referral stays redeemable.
const ReferralTTL = 30 * 24 * time.Hour

// Reward is one side of a completed referral's payout.
type Reward struct {
	Amount  float64
	Type    string
	Claimed bool
}

// Referral links a referrer to a referee.  It is created at most once per
// pair, when the referee registers with the referrer's code, and completed
// exactly once by the referee's first qualifying booking.
type Referral struct {
	ID                     uint64     // referrals.id
	ReferrerID             uint64     // referrals.referrer_id
	RefereeID              uint64     // referrals.referee_id
	ReferralCode           string     // referrals.referral_code (snapshot)
	Status                 string     // referrals.status
	ReferrerReward         Reward     // referrals.referrer_reward_*
	RefereeReward          Reward     // referrals.referee_reward_*
	FirstPurchaseBookingID *uint64    // referrals.first_purchase_booking_id
	CompletedAt            *time.Time // referrals.completed_at
	ExpiresAt              time.Time  // referrals.expires_at
	CreatedAt              time.Time  // referrals.created_at
}

// Expired reports whether the referral is past its redeem-by date.
// Entries past ExpiresAt are inert regardless of their stored status.
func (r *Referral) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// CalculateRewards computes the payout for both sides of a referral from
// the completing booking's total: 10% up to $50 for the referrer, 5% up
// to $25 for the referee.  This is intentionally independent from the
// booking-time discount computed by BookingDiscount; the two quantities
// are tracked separately and never reconciled.
func CalculateRewards(bookingAmount float64) (referrer, referee Reward) {
	referrer = Reward{Amount: math.Min(bookingAmount*0.10, 50), Type: RewardTypeFixed}
	referee = Reward{Amount: math.Min(bookingAmount*0.05, 25), Type: RewardTypeFixed}
	return referrer, referee
}

// BookingDiscount is the referral discount applied at booking time:
// 5% of the pre-discount total, capped at $25.
func BookingDiscount(total float64) float64 {
	return math.Min(total*0.05, 25)
}
