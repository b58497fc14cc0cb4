package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eventhorizon/eventhorizon/internal/analytics"
	"github.com/eventhorizon/eventhorizon/internal/model"
	"github.com/eventhorizon/eventhorizon/internal/repository"
)

// EventOrganizerHandler covers the organizer-facing event lifecycle:
// create, update, delete, plus read-only views of an event's bookings
// and waitlist.
type EventOrganizerHandler struct {
	Events   *repository.EventRepo
	Bookings *repository.BookingRepo
	Waitlist *repository.WaitlistRepo
	Recorder *analytics.Recorder
}

func NewEventOrganizerHandler(e *repository.EventRepo, b *repository.BookingRepo, w *repository.WaitlistRepo, rec *analytics.Recorder) *EventOrganizerHandler {
	return &EventOrganizerHandler{Events: e, Bookings: b, Waitlist: w, Recorder: rec}
}

type tierReq struct {
	Name       string   `json:"name"`
	BasePrice  float64  `json:"basePrice"`
	TotalSeats uint32   `json:"totalSeats"`
	Perks      []string `json:"perks"`
}

type eventReq struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	VenueName   string    `json:"venueName"`
	VenueCity   string    `json:"venueCity"`
	StartsAt    time.Time `json:"startsAt"`
	EndsAt      time.Time `json:"endsAt"`
	Status      string    `json:"status"`
	Tiers       []tierReq `json:"tiers"`

	RefundDeadlineHours *float64 `json:"refundDeadlineHours"`
	RefundPercentage    *float64 `json:"refundPercentage"`
	PricingEnabled      *bool    `json:"pricingEnabled"`
	PriceIncreaseFactor *float64 `json:"priceIncreaseFactor"`
	DemandThreshold     *float64 `json:"demandThreshold"`
}

func (req *eventReq) validate(now time.Time) string {
	if strings.TrimSpace(req.Title) == "" {
		return "title is required"
	}
	if !req.StartsAt.After(now) {
		return "event start must be in the future"
	}
	if !req.EndsAt.After(req.StartsAt) {
		return "event end must be after its start"
	}
	if len(req.Tiers) == 0 {
		return "at least one ticket tier is required"
	}
	seen := map[string]bool{}
	for _, t := range req.Tiers {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return "tier name is required"
		}
		if seen[name] {
			return "tier names must be unique: " + name
		}
		seen[name] = true
		if t.BasePrice < 0 {
			return "tier base price cannot be negative"
		}
		if t.TotalSeats == 0 {
			return "tier must have at least one seat"
		}
	}
	return ""
}

// Defaults mirroring the policy knobs when the organizer omits them.
const (
	defaultRefundDeadlineHours = 24.0
	defaultRefundPercentage    = 80.0
	defaultIncreaseFactor      = 1.1
	defaultDemandThreshold     = 0.8
)

func orDefault(v *float64, def float64) float64 {
	if v != nil {
		return *v
	}
	return def
}

// applyUpdate merges the request onto an existing event, returning a
// message on validation failure. Zero-valued fields count as "not
// supplied" and leave the event untouched, so a partial update never
// clobbers policy knobs the organizer didn't mention.
func (req *eventReq) applyUpdate(e *model.Event, now time.Time) string {
	if req.Title != "" {
		e.Title = strings.TrimSpace(req.Title)
	}
	if req.Description != "" {
		e.Description = req.Description
	}
	if req.Category != "" {
		e.Category = req.Category
	}
	if req.VenueName != "" {
		e.VenueName = req.VenueName
	}
	if req.VenueCity != "" {
		e.VenueCity = req.VenueCity
	}
	if !req.StartsAt.IsZero() {
		if !req.StartsAt.After(now) {
			return "event start must be in the future"
		}
		e.StartsAt = req.StartsAt
	}
	if !req.EndsAt.IsZero() {
		e.EndsAt = req.EndsAt
	}
	if !e.EndsAt.After(e.StartsAt) {
		return "event end must be after its start"
	}
	switch req.Status {
	case model.EventStatusDraft, model.EventStatusPublished,
		model.EventStatusCancelled, model.EventStatusCompleted:
		e.Status = req.Status
	}
	if req.RefundDeadlineHours != nil {
		e.CancellationPolicy.RefundDeadlineHours = *req.RefundDeadlineHours
	}
	if req.RefundPercentage != nil {
		e.CancellationPolicy.RefundPercentage = *req.RefundPercentage
	}
	if req.PricingEnabled != nil {
		e.DynamicPricing.Enabled = *req.PricingEnabled
	}
	if req.PriceIncreaseFactor != nil {
		e.DynamicPricing.PriceIncreaseFactor = *req.PriceIncreaseFactor
	}
	if req.DemandThreshold != nil {
		e.DynamicPricing.DemandThreshold = *req.DemandThreshold
	}
	return ""
}

// Create registers a draft event. Tiers start fully available with the
// current price equal to the base price.
func (h *EventOrganizerHandler) Create(c echo.Context) error {
	uid, authed := currentUserID(c)
	if !authed {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}

	var req eventReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	now := time.Now().UTC()
	if msg := req.validate(now); msg != "" {
		return fail(c, http.StatusBadRequest, msg)
	}

	status := model.EventStatusDraft
	if req.Status == model.EventStatusPublished {
		status = model.EventStatusPublished
	}

	e := model.Event{
		OrganizerID: uid,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Category:    req.Category,
		VenueName:   req.VenueName,
		VenueCity:   req.VenueCity,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		Status:      status,
		CancellationPolicy: model.CancellationPolicy{
			RefundDeadlineHours: orDefault(req.RefundDeadlineHours, defaultRefundDeadlineHours),
			RefundPercentage:    orDefault(req.RefundPercentage, defaultRefundPercentage),
		},
		DynamicPricing: model.DynamicPricing{
			Enabled:             req.PricingEnabled != nil && *req.PricingEnabled,
			PriceIncreaseFactor: orDefault(req.PriceIncreaseFactor, defaultIncreaseFactor),
			DemandThreshold:     orDefault(req.DemandThreshold, defaultDemandThreshold),
		},
	}
	for _, t := range req.Tiers {
		e.Tiers = append(e.Tiers, model.TicketTier{
			Name:           strings.TrimSpace(t.Name),
			BasePrice:      t.BasePrice,
			CurrentPrice:   t.BasePrice,
			TotalSeats:     t.TotalSeats,
			AvailableSeats: t.TotalSeats,
			Perks:          t.Perks,
		})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Events.Create(ctx, &e); err != nil {
		return fail(c, http.StatusInternalServerError, "create event failed")
	}
	return created(c, viewOf(e, now))
}

// loadOwned fetches the event and enforces that the caller owns it or is
// an admin.
func (h *EventOrganizerHandler) loadOwned(c echo.Context) (model.Event, int, string) {
	id := pathID(c, "id")
	if id == 0 {
		return model.Event{}, http.StatusBadRequest, "invalid event id"
	}
	uid, authed := currentUserID(c)
	if !authed {
		return model.Event{}, http.StatusUnauthorized, "unauthorized"
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	e, err := h.Events.GetByID(ctx, id)
	if err == repository.ErrEventNotFound {
		return model.Event{}, http.StatusNotFound, "event not found"
	}
	if err != nil {
		return model.Event{}, http.StatusInternalServerError, "load event failed"
	}
	if e.OrganizerID != uid && currentRole(c) != model.RoleAdmin {
		return model.Event{}, http.StatusForbidden, "you do not own this event"
	}
	return e, 0, ""
}

// Update rewrites the event's mutable fields, including status
// transitions such as draft -> published.
func (h *EventOrganizerHandler) Update(c echo.Context) error {
	e, code, msg := h.loadOwned(c)
	if msg != "" {
		return fail(c, code, msg)
	}

	var req eventReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	if msg := req.applyUpdate(&e, time.Now().UTC()); msg != "" {
		return fail(c, http.StatusBadRequest, msg)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Events.Update(ctx, &e); err != nil {
		return fail(c, http.StatusInternalServerError, "update event failed")
	}
	return ok(c, viewOf(e, time.Now().UTC()))
}

// Delete removes an event that has no bookings. Once anyone has booked,
// the event can only be cancelled, never erased.
func (h *EventOrganizerHandler) Delete(c echo.Context) error {
	e, code, msg := h.loadOwned(c)
	if msg != "" {
		return fail(c, code, msg)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	n, err := h.Bookings.CountByEvent(ctx, e.ID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "count bookings failed")
	}
	if n > 0 {
		return fail(c, http.StatusConflict, "event has bookings; cancel the event instead")
	}
	if err := h.Events.Delete(ctx, e.ID); err != nil {
		return fail(c, http.StatusInternalServerError, "delete event failed")
	}
	return ok(c, echo.Map{"deleted": true})
}

// MyEvents lists the caller's events regardless of status.
func (h *EventOrganizerHandler) MyEvents(c echo.Context) error {
	uid, authed := currentUserID(c)
	if !authed {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	events, err := h.Events.ListByOrganizer(ctx, uid)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "list events failed")
	}
	now := time.Now().UTC()
	views := make([]eventView, 0, len(events))
	for _, e := range events {
		views = append(views, viewOf(e, now))
	}
	return ok(c, echo.Map{"events": views})
}

// EventBookings lists an event's bookings together with its engagement
// counters.
func (h *EventOrganizerHandler) EventBookings(c echo.Context) error {
	e, code, msg := h.loadOwned(c)
	if msg != "" {
		return fail(c, code, msg)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	bookings, err := h.Bookings.ListByEvent(ctx, e.ID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "list bookings failed")
	}
	return ok(c, echo.Map{
		"bookings":  bookingViews(bookings),
		"analytics": h.Recorder.EventSnapshot(ctx, e.ID),
	})
}

// EventWaitlist lists an event's waitlist in drain order.
func (h *EventOrganizerHandler) EventWaitlist(c echo.Context) error {
	e, code, msg := h.loadOwned(c)
	if msg != "" {
		return fail(c, code, msg)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	entries, err := h.Waitlist.ListByEvent(ctx, e.ID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "list waitlist failed")
	}
	return ok(c, echo.Map{"waitlist": waitlistViews(entries)})
}
