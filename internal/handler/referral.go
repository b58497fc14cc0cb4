package handler

import (
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eventhorizon/eventhorizon/internal/model"
	"github.com/eventhorizon/eventhorizon/internal/repository"
)

// ReferralHandler exposes the referral program: a user's own referral
// history with earnings, public code validation, and reward claiming.
type ReferralHandler struct {
	Users     *repository.UserRepo
	Referrals *repository.ReferralRepo
}

func NewReferralHandler(u *repository.UserRepo, r *repository.ReferralRepo) *ReferralHandler {
	return &ReferralHandler{Users: u, Referrals: r}
}

type referralView struct {
	ID          uint64     `json:"id"`
	RefereeID   uint64     `json:"refereeId"`
	Status      string     `json:"status"`
	Reward      float64    `json:"rewardAmount"`
	Claimed     bool       `json:"rewardClaimed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Mine lists the caller's referrals with aggregate earnings. Claimed and
// pending earnings count completed referrals only; pending referrals
// have no reward yet.
func (h *ReferralHandler) Mine(c echo.Context) error {
	uid, authed := currentUserID(c)
	if !authed {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	referrals, err := h.Referrals.ListByReferrer(ctx, uid)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "list referrals failed")
	}

	var completed int
	var claimed, pending float64
	views := make([]referralView, 0, len(referrals))
	for _, r := range referrals {
		if r.Status == model.ReferralStatusCompleted {
			completed++
			if r.ReferrerReward.Claimed {
				claimed += r.ReferrerReward.Amount
			} else {
				pending += r.ReferrerReward.Amount
			}
		}
		views = append(views, referralView{
			ID: r.ID, RefereeID: r.RefereeID, Status: r.Status,
			Reward: r.ReferrerReward.Amount, Claimed: r.ReferrerReward.Claimed,
			CompletedAt: r.CompletedAt, ExpiresAt: r.ExpiresAt, CreatedAt: r.CreatedAt,
		})
	}

	return ok(c, echo.Map{
		"referrals": views,
		"stats": echo.Map{
			"total":           len(referrals),
			"completed":       completed,
			"claimedEarnings": claimed,
			"pendingEarnings": pending,
		},
	})
}

// Validate resolves a referral code publicly, so a registration form can
// confirm the code before submitting.
func (h *ReferralHandler) Validate(c echo.Context) error {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		return fail(c, http.StatusBadRequest, "referral code is required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByReferralCode(ctx, code)
	if err == sql.ErrNoRows {
		return fail(c, http.StatusNotFound, "invalid referral code")
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "referral lookup failed")
	}
	return ok(c, echo.Map{"valid": true, "referrerName": u.Name})
}

// Claim marks the caller's referrer reward as claimed. Only completed,
// unclaimed referrals qualify, and only the referrer may claim.
func (h *ReferralHandler) Claim(c echo.Context) error {
	uid, authed := currentUserID(c)
	if !authed {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	id := pathID(c, "id")
	if id == 0 {
		return fail(c, http.StatusBadRequest, "invalid referral id")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	ref, err := h.Referrals.GetByID(ctx, id)
	if err == sql.ErrNoRows {
		return fail(c, http.StatusNotFound, "referral not found")
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "load referral failed")
	}
	if ref.ReferrerID != uid {
		return fail(c, http.StatusForbidden, "you do not own this referral")
	}

	if err := h.Referrals.ClaimReferrerReward(ctx, id); err != nil {
		if err == repository.ErrConflict {
			return fail(c, http.StatusConflict, "reward is not claimable")
		}
		return fail(c, http.StatusInternalServerError, "claim reward failed")
	}
	return ok(c, echo.Map{"claimed": true, "rewardAmount": ref.ReferrerReward.Amount})
}
