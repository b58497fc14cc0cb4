package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eventhorizon/eventhorizon/internal/analytics"
	"github.com/eventhorizon/eventhorizon/internal/model"
	"github.com/eventhorizon/eventhorizon/internal/pricing"
	"github.com/eventhorizon/eventhorizon/internal/repository"
)

// EventPublicHandler serves unauthenticated event browsing. Displayed
// prices are recomputed on every read; the persisted current_price is
// only a cache of the last recomputation.
type EventPublicHandler struct {
	Events   *repository.EventRepo
	Recorder *analytics.Recorder
}

func NewEventPublicHandler(e *repository.EventRepo, rec *analytics.Recorder) *EventPublicHandler {
	return &EventPublicHandler{Events: e, Recorder: rec}
}

type tierView struct {
	Name           string   `json:"name"`
	BasePrice      float64  `json:"basePrice"`
	CurrentPrice   float64  `json:"currentPrice"`
	TotalSeats     uint32   `json:"totalSeats"`
	AvailableSeats uint32   `json:"availableSeats"`
	Perks          []string `json:"perks,omitempty"`
}

type eventView struct {
	ID          uint64     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	VenueName   string     `json:"venueName"`
	VenueCity   string     `json:"venueCity"`
	StartsAt    time.Time  `json:"startsAt"`
	EndsAt      time.Time  `json:"endsAt"`
	Status      string     `json:"status"`
	Tiers       []tierView `json:"tiers"`
}

func viewOf(e model.Event, now time.Time) eventView {
	v := eventView{
		ID: e.ID, Title: e.Title, Description: e.Description, Category: e.Category,
		VenueName: e.VenueName, VenueCity: e.VenueCity,
		StartsAt: e.StartsAt, EndsAt: e.EndsAt, Status: e.Status,
	}
	for _, t := range e.Tiers {
		v.Tiers = append(v.Tiers, tierView{
			Name:           t.Name,
			BasePrice:      t.BasePrice,
			CurrentPrice:   pricing.CurrentPrice(t, e, now),
			TotalSeats:     t.TotalSeats,
			AvailableSeats: t.AvailableSeats,
			Perks:          t.Perks,
		})
	}
	return v
}

// List returns published events with filters and pagination.
func (h *EventPublicHandler) List(c echo.Context) error {
	f := repository.EventFilter{
		Category: c.QueryParam("category"),
		City:     c.QueryParam("city"),
		Query:    c.QueryParam("q"),
	}
	if v := c.QueryParam("dateFrom"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.DateFrom = &t
		}
	}
	if v := c.QueryParam("dateTo"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.DateTo = &t
		}
	}
	if v := c.QueryParam("priceMin"); v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil {
			f.PriceMin = &p
		}
	}
	if v := c.QueryParam("priceMax"); v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil {
			f.PriceMax = &p
		}
	}
	f.Page, _ = strconv.Atoi(c.QueryParam("page"))
	f.Limit, _ = strconv.Atoi(c.QueryParam("limit"))

	ctx, cancel := reqCtx(c)
	defer cancel()

	events, total, err := h.Events.ListPublished(ctx, f)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "list events failed")
	}

	now := time.Now().UTC()
	views := make([]eventView, 0, len(events))
	for _, e := range events {
		views = append(views, viewOf(e, now))
	}
	return ok(c, echo.Map{"events": views, "total": total})
}

// CountView bumps the event's view counter before the rest of the chain
// runs. Registered in front of the response cache so that cache hits
// still count as views.
func (h *EventPublicHandler) CountView() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if id := pathID(c, "id"); id != 0 {
				h.Recorder.EventViewed(c.Request().Context(), id)
			}
			return next(c)
		}
	}
}

// Get returns one event with its prices recomputed for display.
func (h *EventPublicHandler) Get(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return fail(c, http.StatusBadRequest, "invalid event id")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	e, err := h.Events.GetByID(ctx, id)
	if err == repository.ErrEventNotFound {
		return fail(c, http.StatusNotFound, "event not found")
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "load event failed")
	}

	return ok(c, viewOf(e, time.Now().UTC()))
}

// Share records a share of the event's page. The response carries no
// body beyond the envelope; the counter is the whole point.
func (h *EventPublicHandler) Share(c echo.Context) error {
	id := pathID(c, "id")
	if id == 0 {
		return fail(c, http.StatusBadRequest, "invalid event id")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if _, err := h.Events.GetByID(ctx, id); err != nil {
		if err == repository.ErrEventNotFound {
			return fail(c, http.StatusNotFound, "event not found")
		}
		return fail(c, http.StatusInternalServerError, "load event failed")
	}

	h.Recorder.EventShared(ctx, id)
	return ok(c, echo.Map{"shared": true})
}
