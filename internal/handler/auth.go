package handler

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eventhorizon/eventhorizon/internal/config"
	"github.com/eventhorizon/eventhorizon/internal/model"
	"github.com/eventhorizon/eventhorizon/internal/queue"
	"github.com/eventhorizon/eventhorizon/internal/repository"
	notifier "github.com/eventhorizon/eventhorizon/internal/service"
	"github.com/eventhorizon/eventhorizon/internal/utils"
)

// AuthHandler bundles dependencies for the auth endpoints. Registration
// is also where referrals begin: signing up with someone's code creates
// the pending referral that the referee's first booking later completes.
type AuthHandler struct {
	Cfg       config.Config
	Users     *repository.UserRepo
	Tokens    *repository.TokenRepo
	Referrals *repository.ReferralRepo
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo, r *repository.ReferralRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Referrals: r}
}

type registerReq struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Phone        string `json:"phone"`
	Role         string `json:"role"` // user | organizer; admin is never self-assignable
	ReferralCode string `json:"referralCode"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID           uint64 `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	ReferralCode string `json:"referralCode"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// Register creates the account, links the referral if a valid code was
// supplied and returns a token pair. The referral and welcome email are
// best-effort: their failure never fails the registration.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "name, email and password are required")
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role != model.RoleOrganizer {
		role = model.RoleUser
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	// Resolve the referral code up front so a bad code is a clean 400
	// instead of a half-created account.
	var referrer *model.User
	if code := strings.TrimSpace(req.ReferralCode); code != "" {
		u, err := h.Users.GetByReferralCode(ctx, code)
		if err == sql.ErrNoRows {
			return fail(c, http.StatusBadRequest, "invalid referral code")
		}
		if err != nil {
			return fail(c, http.StatusInternalServerError, "referral lookup failed")
		}
		referrer = &u
	}

	var referredBy *uint64
	if referrer != nil {
		referredBy = &referrer.ID
	}
	uid, err := h.Users.Create(ctx, req.Name, req.Email, req.Password, req.Phone, role, referredBy, h.Cfg.BcryptCost)
	if err != nil {
		if err == repository.ErrEmailExists {
			return fail(c, http.StatusConflict, "email already exists")
		}
		return fail(c, http.StatusInternalServerError, "create user failed")
	}

	if referrer != nil {
		now := time.Now().UTC()
		if err := h.Referrals.Create(ctx, referrer.ID, uid, referrer.ReferralCode, now); err != nil {
			log.Printf("auth: create referral failed: %v", err)
		} else if err := h.Users.IncrementReferrals(ctx, referrer.ID); err != nil {
			log.Printf("auth: bump referral counter failed: %v", err)
		}
	}

	user, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "load user failed")
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, uid, role, h.Cfg.AccessTTLMin)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "issue access failed")
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "issue refresh failed")
	}
	if err := h.Tokens.StoreRefresh(ctx, uid, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return fail(c, http.StatusInternalServerError, "save refresh failed")
	}

	// Detached context: the email must not die with the request.
	go func() {
		_ = notifier.PublishEmail(context.Background(), h.Cfg.AMQPURL, queue.EmailMessage{
			To:       user.Email,
			Template: queue.TemplateWelcome,
			Subject:  "Welcome to EventHorizon",
			Data:     map[string]interface{}{"name": user.Name, "referralCode": user.ReferralCode},
		})
	}()

	return created(c, authResp{
		User:    userPart{ID: uid, Name: user.Name, Email: user.Email, Role: role, ReferralCode: user.ReferralCode},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	})
}

// Login verifies credentials and returns a fresh token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "email and password are required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err == sql.ErrNoRows || (err == nil && !utils.VerifyPassword(u.PasswordHash, req.Password)) {
		return fail(c, http.StatusUnauthorized, "invalid credentials")
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "login failed")
	}
	if !u.IsActive {
		return fail(c, http.StatusForbidden, "account is deactivated")
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "issue access failed")
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "issue refresh failed")
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return fail(c, http.StatusInternalServerError, "save refresh failed")
	}

	return ok(c, authResp{
		User:    userPart{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, ReferralCode: u.ReferralCode},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	})
}

// Refresh rotates a refresh token: validate, revoke, issue a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return fail(c, http.StatusBadRequest, "refreshToken is required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	hash := utils.HashRefreshRaw(req.RefreshToken)
	uid, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "invalid refresh token")
	}

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "invalid refresh token")
	}

	// Rotation: the presented token is dead regardless of what follows.
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return fail(c, http.StatusInternalServerError, "revoke failed")
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "issue access failed")
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "issue refresh failed")
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return fail(c, http.StatusInternalServerError, "save refresh failed")
	}

	return ok(c, authResp{
		User:    userPart{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, ReferralCode: u.ReferralCode},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	})
}

// Logout revokes the presented refresh token. Idempotent.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return fail(c, http.StatusBadRequest, "refreshToken is required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Tokens.RevokeByHash(ctx, utils.HashRefreshRaw(req.RefreshToken)); err != nil {
		return fail(c, http.StatusInternalServerError, "logout failed")
	}
	return ok(c, echo.Map{"loggedOut": true})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, authed := currentUserID(c)
	if !authed {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err == sql.ErrNoRows {
		return fail(c, http.StatusNotFound, "user not found")
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "load user failed")
	}
	return ok(c, echo.Map{
		"id":             u.ID,
		"name":           u.Name,
		"email":          u.Email,
		"phone":          u.Phone,
		"role":           u.Role,
		"referralCode":   u.ReferralCode,
		"totalReferrals": u.TotalReferrals,
		"createdAt":      u.CreatedAt,
	})
}
