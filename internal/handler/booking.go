package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eventhorizon/eventhorizon/internal/analytics"
	"github.com/eventhorizon/eventhorizon/internal/config"
	"github.com/eventhorizon/eventhorizon/internal/model"
	"github.com/eventhorizon/eventhorizon/internal/pricing"
	"github.com/eventhorizon/eventhorizon/internal/queue"
	"github.com/eventhorizon/eventhorizon/internal/repository"
	notifier "github.com/eventhorizon/eventhorizon/internal/service"
	"github.com/eventhorizon/eventhorizon/internal/utils"
)

// refundProcessingDays is quoted back to the user on cancellation.
// Refund execution itself happens outside this system.
const refundProcessingDays = 3

// BookingHandler implements booking creation and cancellation. Both
// workflows run the inventory mutation and the booking row change inside
// one transaction; everything after commit (QR, referral completion,
// emails, waitlist notifications) is best-effort and never rolls the
// booking back.
type BookingHandler struct {
	Cfg       config.Config
	Events    *repository.EventRepo
	Bookings  *repository.BookingRepo
	Users     *repository.UserRepo
	Referrals *repository.ReferralRepo
	Waitlist  *repository.WaitlistRepo
	Recorder  *analytics.Recorder
}

func NewBookingHandler(cfg config.Config, e *repository.EventRepo, b *repository.BookingRepo,
	u *repository.UserRepo, r *repository.ReferralRepo, w *repository.WaitlistRepo,
	rec *analytics.Recorder) *BookingHandler {
	return &BookingHandler{Cfg: cfg, Events: e, Bookings: b, Users: u, Referrals: r, Waitlist: w, Recorder: rec}
}

type ticketReq struct {
	TierName string `json:"tierName"`
	Quantity uint32 `json:"quantity"`
}

type createBookingReq struct {
	EventID      uint64      `json:"eventId"`
	Tickets      []ticketReq `json:"tickets"`
	ReferralCode string      `json:"referralCode"`
}

type bookingView struct {
	ID            uint64             `json:"id"`
	Reference     string             `json:"reference"`
	EventID       uint64             `json:"eventId"`
	Tickets       []model.TicketLine `json:"tickets"`
	TotalAmount   float64            `json:"totalAmount"`
	Discount      float64            `json:"discountAmount"`
	DiscountCode  string             `json:"discountCode,omitempty"`
	PaymentStatus string             `json:"paymentStatus"`
	Status        string             `json:"status"`
	QRCode        string             `json:"qrCode,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
}

func bookingViewOf(b model.Booking) bookingView {
	return bookingView{
		ID: b.ID, Reference: b.Reference, EventID: b.EventID, Tickets: b.Tickets,
		TotalAmount: b.TotalAmount, Discount: b.Discount.Amount, DiscountCode: b.Discount.Code,
		PaymentStatus: b.PaymentStatus, Status: b.Status, QRCode: b.QRCode, CreatedAt: b.CreatedAt,
	}
}

func bookingViews(bookings []model.Booking) []bookingView {
	views := make([]bookingView, 0, len(bookings))
	for _, b := range bookings {
		views = append(views, bookingViewOf(b))
	}
	return views
}

// referralDiscountFor computes the booking-time referral discount. No
// discount applies when the code resolved to nobody or to the booker
// themselves; both cases book at full price instead of failing.
func referralDiscountFor(code string, referrer *model.User, bookerID uint64, subtotal float64) model.Discount {
	if referrer == nil || referrer.ID == bookerID {
		return model.Discount{}
	}
	return model.Discount{
		Amount: model.BookingDiscount(subtotal),
		Code:   code,
		Type:   model.DiscountTypeReferral,
	}
}

// Create books tickets. Prices are frozen at the values the pricing
// engine computes now; the conditional seat decrement inside the
// transaction is what makes overselling impossible even when two
// requests race for the last seats.
func (h *BookingHandler) Create(c echo.Context) error {
	uid, authed := currentUserID(c)
	if !authed {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}

	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	if req.EventID == 0 || len(req.Tickets) == 0 {
		return fail(c, http.StatusBadRequest, "eventId and tickets are required")
	}
	for _, t := range req.Tickets {
		if strings.TrimSpace(t.TierName) == "" || t.Quantity == 0 {
			return fail(c, http.StatusBadRequest, "every ticket line needs a tier name and a positive quantity")
		}
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	// Attempts are counted before any validation so abandoned and failed
	// attempts show up in demand numbers too.
	h.Recorder.BookingAttempted(ctx, req.EventID)

	now := time.Now().UTC()

	tx, err := h.Events.DB().BeginTx(ctx, nil)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "begin transaction failed")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	event, err := h.Events.GetByIDTx(ctx, tx, req.EventID)
	if err == repository.ErrEventNotFound {
		return fail(c, http.StatusNotFound, "event not found")
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "load event failed")
	}
	if event.Status != model.EventStatusPublished {
		return fail(c, http.StatusBadRequest, "event is not open for booking")
	}
	if !event.StartsAt.After(now) {
		return fail(c, http.StatusBadRequest, "event has already started")
	}

	// Freeze prices and build the ticket lines. Tier names match exactly.
	booking := model.Booking{
		Reference:     utils.NewBookingReference(),
		UserID:        uid,
		EventID:       event.ID,
		PaymentStatus: model.PaymentStatusPending,
		Status:        model.BookingStatusConfirmed,
	}
	items := make([]repository.ReserveItem, 0, len(req.Tickets))
	for _, t := range req.Tickets {
		tier := event.Tier(t.TierName)
		if tier == nil {
			return fail(c, http.StatusNotFound, "ticket tier not found: "+t.TierName)
		}
		booking.Tickets = append(booking.Tickets, model.TicketLine{
			TierName:       tier.Name,
			Quantity:       t.Quantity,
			PricePerTicket: pricing.CurrentPrice(*tier, event, now),
		})
		items = append(items, repository.ReserveItem{TierName: tier.Name, Quantity: t.Quantity})
	}

	// Referral discount. A code that doesn't resolve, or that belongs to
	// the booker, is ignored rather than rejected: the booking proceeds
	// at full price.
	if code := strings.TrimSpace(req.ReferralCode); code != "" {
		var referrer *model.User
		switch u, err := h.Users.GetByReferralCode(ctx, code); {
		case err == sql.ErrNoRows:
		case err != nil:
			return fail(c, http.StatusInternalServerError, "referral lookup failed")
		default:
			referrer = &u
		}
		subtotal := 0.0
		for _, line := range booking.Tickets {
			subtotal += float64(line.Quantity) * line.PricePerTicket
		}
		booking.Discount = referralDiscountFor(code, referrer, uid, subtotal)
	}
	booking.TotalAmount = booking.CalculateTotal()

	if err := h.Events.ReserveSeatsTx(ctx, tx, event.ID, items); err != nil {
		var insufficient *repository.InsufficientSeatsError
		if errors.As(err, &insufficient) {
			return fail(c, http.StatusConflict, insufficient.Error())
		}
		if err == repository.ErrTierNotFound {
			return fail(c, http.StatusNotFound, "ticket tier not found")
		}
		return fail(c, http.StatusInternalServerError, "reserve seats failed")
	}

	if err := h.Bookings.CreateTx(ctx, tx, &booking); err != nil {
		return fail(c, http.StatusInternalServerError, "create booking failed")
	}

	// Persist refreshed current prices for subsequent bookings: the sale
	// that just happened may have pushed a tier over its demand threshold.
	if event.DynamicPricing.Enabled {
		for i := range event.Tiers {
			for _, item := range items {
				if event.Tiers[i].Name == item.TierName {
					event.Tiers[i].AvailableSeats -= item.Quantity
				}
			}
		}
		if err := h.Events.UpdateCurrentPricesTx(ctx, tx, event.ID, pricing.CurrentPrices(event, now)); err != nil {
			return fail(c, http.StatusInternalServerError, "update prices failed")
		}
	}

	if err := tx.Commit(); err != nil {
		return fail(c, http.StatusInternalServerError, "commit failed")
	}
	committed = true

	h.afterBooking(&booking, event)

	return created(c, bookingViewOf(booking))
}

// afterBooking runs the best-effort follow-ups of a committed booking:
// QR attachment, referral completion and the confirmation email. No
// waitlist drain here: inventory just shrank.
func (h *BookingHandler) afterBooking(b *model.Booking, event model.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	now := time.Now().UTC()

	if blob, err := utils.GenerateBookingQR(strconv.FormatUint(b.ID, 10), b.Reference); err != nil {
		log.Printf("booking: generate qr failed: %v", err)
	} else if err := h.Bookings.SetQRCode(ctx, b.ID, blob); err != nil {
		log.Printf("booking: attach qr failed: %v", err)
	} else {
		b.QRCode = blob
	}

	user, err := h.Users.GetByID(ctx, b.UserID)
	if err != nil {
		log.Printf("booking: load user failed: %v", err)
		return
	}

	// The referred user's first booking that actually used the referral
	// discount completes the pending referral; both rewards are computed
	// from this booking's total. Bookings without the discount leave the
	// referral pending.
	if user.ReferredBy != nil && b.UsedReferralDiscount() {
		if ref, err := h.Referrals.FindPending(ctx, *user.ReferredBy, user.ID, now); err == nil {
			referrer, referee := model.CalculateRewards(b.TotalAmount)
			if err := h.Referrals.Complete(ctx, ref.ID, b.ID, referrer, referee, now); err != nil {
				log.Printf("booking: complete referral %d failed: %v", ref.ID, err)
			}
		} else if err != sql.ErrNoRows {
			log.Printf("booking: find referral failed: %v", err)
		}
	}

	_ = notifier.PublishEmail(ctx, h.Cfg.AMQPURL, queue.EmailMessage{
		To:       user.Email,
		Template: queue.TemplateBookingConfirmation,
		Subject:  "Booking confirmed: " + event.Title,
		Data: map[string]interface{}{
			"reference":   b.Reference,
			"eventTitle":  event.Title,
			"startsAt":    event.StartsAt,
			"totalAmount": b.TotalAmount,
		},
	})
}

// Cancel cancels a confirmed booking inside the refund window, restores
// its seats and reports the refund. The guarded status update makes the
// operation idempotent: a second cancel returns a conflict and the seats
// are restored exactly once.
func (h *BookingHandler) Cancel(c echo.Context) error {
	uid, authed := currentUserID(c)
	if !authed {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	id := pathID(c, "id")
	if id == 0 {
		return fail(c, http.StatusBadRequest, "invalid booking id")
	}

	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.Bind(&body)

	ctx, cancel := reqCtx(c)
	defer cancel()
	now := time.Now().UTC()

	booking, err := h.Bookings.GetByID(ctx, id)
	if err == sql.ErrNoRows {
		return fail(c, http.StatusNotFound, "booking not found")
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "load booking failed")
	}
	if booking.UserID != uid {
		return fail(c, http.StatusForbidden, "you do not own this booking")
	}
	if booking.Status != model.BookingStatusConfirmed {
		return fail(c, http.StatusConflict, "only confirmed bookings can be cancelled")
	}

	event, err := h.Events.GetByID(ctx, booking.EventID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "load event failed")
	}
	if !event.RefundAllowed(now) {
		return fail(c, http.StatusBadRequest, fmt.Sprintf(
			"cancellation deadline has passed: bookings must be cancelled at least %g hours before the event",
			event.CancellationPolicy.RefundDeadlineHours))
	}
	refund := event.RefundAmount(booking.TotalAmount)

	tx, err := h.Events.DB().BeginTx(ctx, nil)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "begin transaction failed")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := h.Bookings.CancelTx(ctx, tx, booking.ID, refund, body.Reason, now); err != nil {
		if err == repository.ErrConflict {
			return fail(c, http.StatusConflict, "booking is no longer confirmed")
		}
		return fail(c, http.StatusInternalServerError, "cancel booking failed")
	}

	items := make([]repository.ReserveItem, 0, len(booking.Tickets))
	for _, line := range booking.Tickets {
		items = append(items, repository.ReserveItem{TierName: line.TierName, Quantity: line.Quantity})
	}
	if err := h.Events.ReleaseSeatsTx(ctx, tx, booking.EventID, items); err != nil {
		return fail(c, http.StatusInternalServerError, "release seats failed")
	}

	if err := tx.Commit(); err != nil {
		return fail(c, http.StatusInternalServerError, "commit failed")
	}
	committed = true

	go h.afterCancellation(booking, event, refund)

	return ok(c, echo.Map{
		"refundAmount":   refund,
		"processingDays": refundProcessingDays,
	})
}

// afterCancellation notifies the waitlist of the freed seats and emails
// the user. Seats just came back, so this is the one place a drain runs.
func (h *BookingHandler) afterCancellation(b model.Booking, event model.Event, refund float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	for _, line := range b.Tickets {
		DrainWaitlistTier(ctx, h.Cfg.AMQPURL, h.Events, h.Waitlist, event, line.TierName)
	}

	user, err := h.Users.GetByID(ctx, b.UserID)
	if err != nil {
		log.Printf("booking: load user failed: %v", err)
		return
	}
	_ = notifier.PublishEmail(ctx, h.Cfg.AMQPURL, queue.EmailMessage{
		To:       user.Email,
		Template: queue.TemplateBookingCancellation,
		Subject:  "Booking cancelled: " + event.Title,
		Data: map[string]interface{}{
			"reference":      b.Reference,
			"eventTitle":     event.Title,
			"refundAmount":   refund,
			"processingDays": refundProcessingDays,
		},
	})
}

// Mine lists the caller's bookings.
func (h *BookingHandler) Mine(c echo.Context) error {
	uid, authed := currentUserID(c)
	if !authed {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	bookings, err := h.Bookings.ListByUser(ctx, uid)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "list bookings failed")
	}
	return ok(c, echo.Map{"bookings": bookingViews(bookings)})
}

// Get returns one booking to its owner, the event's organizer or an
// admin.
func (h *BookingHandler) Get(c echo.Context) error {
	uid, authed := currentUserID(c)
	if !authed {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	id := pathID(c, "id")
	if id == 0 {
		return fail(c, http.StatusBadRequest, "invalid booking id")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	booking, err := h.Bookings.GetByID(ctx, id)
	if err == sql.ErrNoRows {
		return fail(c, http.StatusNotFound, "booking not found")
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "load booking failed")
	}

	if booking.UserID != uid && currentRole(c) != model.RoleAdmin {
		event, err := h.Events.GetByID(ctx, booking.EventID)
		if err != nil || event.OrganizerID != uid {
			return fail(c, http.StatusForbidden, "you cannot view this booking")
		}
	}
	return ok(c, bookingViewOf(booking))
}

// UpdatePayment records the externally reported payment state on the
// caller's booking.
func (h *BookingHandler) UpdatePayment(c echo.Context) error {
	uid, authed := currentUserID(c)
	if !authed {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	id := pathID(c, "id")
	if id == 0 {
		return fail(c, http.StatusBadRequest, "invalid booking id")
	}

	var req struct {
		PaymentStatus string `json:"paymentStatus"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	switch req.PaymentStatus {
	case model.PaymentStatusPending, model.PaymentStatusCompleted,
		model.PaymentStatusFailed, model.PaymentStatusRefunded:
	default:
		return fail(c, http.StatusBadRequest, "invalid payment status")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	booking, err := h.Bookings.GetByID(ctx, id)
	if err == sql.ErrNoRows {
		return fail(c, http.StatusNotFound, "booking not found")
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "load booking failed")
	}
	if booking.UserID != uid && currentRole(c) != model.RoleAdmin {
		return fail(c, http.StatusForbidden, "you do not own this booking")
	}

	if err := h.Bookings.UpdatePaymentStatus(ctx, id, req.PaymentStatus); err != nil {
		return fail(c, http.StatusInternalServerError, "update payment failed")
	}
	return ok(c, echo.Map{"paymentStatus": req.PaymentStatus})
}
