package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/eventhorizon/eventhorizon/internal/model"
)

// ReferralRepo tracks referral relationships and their reward state.
// Pending referrals expire 30 days after creation; since no background
// sweeper exists, reads that care about freshness first flip stale rows
// to expired (lazy expiry).
type ReferralRepo struct {
	db *sql.DB
}

// NewReferralRepo returns a ReferralRepo bound to the given database.
func NewReferralRepo(db *sql.DB) *ReferralRepo { return &ReferralRepo{db: db} }

const referralColumns = `id, referrer_id, referee_id, referral_code, status,
	referrer_reward_amount, referrer_reward_type, referrer_reward_claimed,
	referee_reward_amount, referee_reward_type, referee_reward_claimed,
	first_purchase_booking_id, completed_at, expires_at, created_at`

func scanReferral(row interface{ Scan(...any) error }) (model.Referral, error) {
	var r model.Referral
	var bookingID sql.NullInt64
	var completedAt sql.NullTime
	err := row.Scan(&r.ID, &r.ReferrerID, &r.RefereeID, &r.ReferralCode, &r.Status,
		&r.ReferrerReward.Amount, &r.ReferrerReward.Type, &r.ReferrerReward.Claimed,
		&r.RefereeReward.Amount, &r.RefereeReward.Type, &r.RefereeReward.Claimed,
		&bookingID, &completedAt, &r.ExpiresAt, &r.CreatedAt)
	if bookingID.Valid {
		id := uint64(bookingID.Int64)
		r.FirstPurchaseBookingID = &id
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	return r, err
}

// Create inserts a pending referral for the (referrer, referee) pair.
// The unique key on the pair means at most one referral ever exists per
// pair; duplicate inserts surface as an error the caller may ignore.
func (r *ReferralRepo) Create(ctx context.Context, referrerID, refereeID uint64, code string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO referrals
		(referrer_id, referee_id, referral_code, status, expires_at)
		VALUES (?,?,?,?,?)`,
		referrerID, refereeID, code, model.ReferralStatusPending, now.Add(model.ReferralTTL))
	return err
}

// expireStale lazily marks the referee's overdue pending referrals as
// expired so they can never be completed afterwards.
func (r *ReferralRepo) expireStale(ctx context.Context, refereeID uint64, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE referrals SET status = ?
		WHERE referee_id = ? AND status = ? AND expires_at <= ?`,
		model.ReferralStatusExpired, refereeID, model.ReferralStatusPending, now)
	return err
}

// FindPending returns the live pending referral between referrer and
// referee, running lazy expiry first. sql.ErrNoRows when none exists.
func (r *ReferralRepo) FindPending(ctx context.Context, referrerID, refereeID uint64, now time.Time) (model.Referral, error) {
	if err := r.expireStale(ctx, refereeID, now); err != nil {
		return model.Referral{}, err
	}
	return scanReferral(r.db.QueryRowContext(ctx,
		`SELECT `+referralColumns+` FROM referrals
		 WHERE referrer_id = ? AND referee_id = ? AND status = ? LIMIT 1`,
		referrerID, refereeID, model.ReferralStatusPending))
}

// Complete marks a pending referral as completed by its referee's first
// qualifying booking and stores both computed rewards. Guarded on the
// pending status so a referral completes exactly once.
func (r *ReferralRepo) Complete(ctx context.Context, id, bookingID uint64, referrer, referee model.Reward, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE referrals SET
		status = ?, first_purchase_booking_id = ?, completed_at = ?,
		referrer_reward_amount = ?, referrer_reward_type = ?,
		referee_reward_amount = ?, referee_reward_type = ?
		WHERE id = ? AND status = ?`,
		model.ReferralStatusCompleted, bookingID, now,
		referrer.Amount, referrer.Type, referee.Amount, referee.Type,
		id, model.ReferralStatusPending)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// GetByID loads one referral.
func (r *ReferralRepo) GetByID(ctx context.Context, id uint64) (model.Referral, error) {
	return scanReferral(r.db.QueryRowContext(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE id = ?`, id))
}

// ListByReferrer returns all referrals a user has made, newest first.
func (r *ReferralRepo) ListByReferrer(ctx context.Context, referrerID uint64) ([]model.Referral, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE referrer_id = ? ORDER BY created_at DESC`,
		referrerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var referrals []model.Referral
	for rows.Next() {
		ref, err := scanReferral(rows)
		if err != nil {
			return nil, err
		}
		referrals = append(referrals, ref)
	}
	return referrals, rows.Err()
}

// ClaimReferrerReward marks the referrer's reward as claimed. Guarded so
// a reward can be claimed at most once, and only on completed referrals.
func (r *ReferralRepo) ClaimReferrerReward(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE referrals SET referrer_reward_claimed = 1
		WHERE id = ? AND status = ? AND referrer_reward_claimed = 0`,
		id, model.ReferralStatusCompleted)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
