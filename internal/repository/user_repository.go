package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/eventhorizon/eventhorizon/internal/model"
	"github.com/eventhorizon/eventhorizon/internal/utils"
)

// UserRepo provides persistence for user accounts.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `id, name, email, password_hash, phone, role, referral_code,
	referred_by, total_referrals, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	var referredBy sql.NullInt64
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Phone, &u.Role,
		&u.ReferralCode, &referredBy, &u.TotalReferrals, &u.IsActive,
		&u.CreatedAt, &u.UpdatedAt)
	if referredBy.Valid {
		id := uint64(referredBy.Int64)
		u.ReferredBy = &id
	}
	return u, err
}

// Create inserts a user with a freshly generated referral code and
// returns its ID. referredBy is nil when the user registered without a
// referral code.
func (r *UserRepo) Create(ctx context.Context, name, email, password, phone, role string, referredBy *uint64, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	var refBy any
	if referredBy != nil {
		refBy = *referredBy
	}
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (name, email, password_hash, phone, role, referral_code, referred_by)
		 VALUES (?,?,?,?,?,?,?)`,
		name, email, hash, phone, role, utils.NewReferralCode(name), refBy)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? LIMIT 1`, email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ? LIMIT 1`, id))
}

// GetByReferralCode resolves a shareable referral code to its owner.
func (r *UserRepo) GetByReferralCode(ctx context.Context, code string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE referral_code = ? LIMIT 1`, code))
}

// IncrementReferrals bumps the referrer's lifetime referral counter.
func (r *UserRepo) IncrementReferrals(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE users SET total_referrals = total_referrals + 1 WHERE id = ?`, userID)
	return err
}
