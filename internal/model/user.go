package model

import "time"

// Roles stored in users.role and carried in the JWT "role" claim.
const (
	RoleUser      = "user"
	RoleOrganizer = "organizer"
	RoleAdmin     = "admin"
)

// User represents an account that can browse events, book tickets and,
// with the organizer role, publish events.  Every user carries a unique
// referral code generated at registration; sharing it links new
// registrations back to this user through the referrals table.
//
// Fields:
//  ID             – primary key identifier.
//  Name           – display name.
//  Email          – unique, stored lowercase.
//  PasswordHash   – bcrypt hash; never serialized.
//  Phone          – optional contact number.
//  Role           – one of user, organizer, admin.
//  ReferralCode   – unique shareable code.
//  ReferredBy     – user who referred this account (nil if none).
//  TotalReferrals – count of registrations made with this user's code.
type User struct {
	ID             uint64    // users.id
	Name           string    // users.name
	Email          string    // users.email
	PasswordHash   string    // users.password_hash
	Phone          string    // users.phone
	Role           string    // users.role
	ReferralCode   string    // users.referral_code
	ReferredBy     *uint64   // users.referred_by (nullable)
	TotalReferrals uint32    // users.total_referrals
	IsActive       bool      // users.is_active
	CreatedAt      time.Time // users.created_at
	UpdatedAt      time.Time // users.updated_at
}
