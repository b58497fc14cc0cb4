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
)

// notifyBatchSize caps how many waitlist entries one drain notifies.
const notifyBatchSize = 5

// waitlistStore is the slice of the waitlist repository the handler and
// the drain consume. *repository.WaitlistRepo satisfies it.
type waitlistStore interface {
	Create(ctx context.Context, e *model.WaitlistEntry) error
	ExpireStale(ctx context.Context, eventID uint64, tierName string, now time.Time) error
	HasActiveEntry(ctx context.Context, userID, eventID uint64, tierName string) (bool, error)
	NextInLine(ctx context.Context, eventID uint64, tierName string, available uint32, limit int) ([]model.WaitlistEntry, error)
	MarkNotified(ctx context.Context, id uint64, now time.Time) error
	GetByID(ctx context.Context, id uint64) (model.WaitlistEntry, error)
	Delete(ctx context.Context, id uint64) error
	ListByUser(ctx context.Context, userID uint64) ([]model.WaitlistEntry, error)
}

// tierReader reads events and live per-tier availability.
// *repository.EventRepo satisfies it.
type tierReader interface {
	GetByID(ctx context.Context, id uint64) (model.Event, error)
	TierAvailability(ctx context.Context, eventID uint64, tierName string) (uint32, error)
}

// WaitlistHandler manages the per-tier queues users join when a tier is
// sold out.
type WaitlistHandler struct {
	Cfg      config.Config
	Events   tierReader
	Waitlist waitlistStore
}

func NewWaitlistHandler(cfg config.Config, e *repository.EventRepo, w *repository.WaitlistRepo) *WaitlistHandler {
	return &WaitlistHandler{Cfg: cfg, Events: e, Waitlist: w}
}

type joinWaitlistReq struct {
	EventID  uint64  `json:"eventId"`
	TierName string  `json:"tierName"`
	Quantity uint32  `json:"quantity"`
	MaxPrice float64 `json:"maxPrice"`
	Priority int32   `json:"priority"`
}

type waitlistView struct {
	ID               uint64    `json:"id"`
	EventID          uint64    `json:"eventId"`
	TierName         string    `json:"tierName"`
	Quantity         uint32    `json:"quantity"`
	MaxPrice         float64   `json:"maxPrice"`
	Status           string    `json:"status"`
	Priority         int32     `json:"priority"`
	NotificationSent bool      `json:"notificationSent"`
	ExpiresAt        time.Time `json:"expiresAt"`
	ResponseDeadline time.Time `json:"responseDeadline"`
	CreatedAt        time.Time `json:"createdAt"`
}

func waitlistViewOf(w model.WaitlistEntry) waitlistView {
	return waitlistView{
		ID: w.ID, EventID: w.EventID, TierName: w.TierName, Quantity: w.Quantity,
		MaxPrice: w.MaxPrice, Status: w.Status, Priority: w.Priority,
		NotificationSent: w.NotificationSent, ExpiresAt: w.ExpiresAt,
		ResponseDeadline: w.ResponseDeadline, CreatedAt: w.CreatedAt,
	}
}

func waitlistViews(entries []model.WaitlistEntry) []waitlistView {
	views := make([]waitlistView, 0, len(entries))
	for _, w := range entries {
		views = append(views, waitlistViewOf(w))
	}
	return views
}

// Join adds the caller to a tier's waitlist. The join is refused while
// the tier can still satisfy the requested quantity (book instead), and
// a user holds at most one active entry per (event, tier).
func (h *WaitlistHandler) Join(c echo.Context) error {
	uid, authed := currentUserID(c)
	if !authed {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}

	var req joinWaitlistReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	req.TierName = strings.TrimSpace(req.TierName)
	if req.EventID == 0 || req.TierName == "" || req.Quantity == 0 {
		return fail(c, http.StatusBadRequest, "eventId, tierName and a positive quantity are required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	now := time.Now().UTC()

	event, err := h.Events.GetByID(ctx, req.EventID)
	if err == repository.ErrEventNotFound {
		return fail(c, http.StatusNotFound, "event not found")
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "load event failed")
	}
	tier := event.Tier(req.TierName)
	if tier == nil {
		return fail(c, http.StatusNotFound, "ticket tier not found: "+req.TierName)
	}
	if tier.AvailableSeats >= req.Quantity {
		return fail(c, http.StatusBadRequest, "tickets are currently available, book them instead")
	}

	// Lazy expiry first so a long-expired entry doesn't block a re-join.
	if err := h.Waitlist.ExpireStale(ctx, req.EventID, req.TierName, now); err != nil {
		return fail(c, http.StatusInternalServerError, "waitlist maintenance failed")
	}
	exists, err := h.Waitlist.HasActiveEntry(ctx, uid, req.EventID, req.TierName)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "waitlist lookup failed")
	}
	if exists {
		return fail(c, http.StatusConflict, "already on the waitlist for this tier")
	}

	entry := model.WaitlistEntry{
		UserID:           uid,
		EventID:          req.EventID,
		TierName:         req.TierName,
		Quantity:         req.Quantity,
		MaxPrice:         req.MaxPrice,
		Status:           model.WaitlistStatusActive,
		Priority:         req.Priority,
		ExpiresAt:        now.Add(model.WaitlistTTL),
		ResponseDeadline: now.Add(model.ResponseWindow),
	}
	if err := h.Waitlist.Create(ctx, &entry); err != nil {
		return fail(c, http.StatusInternalServerError, "join waitlist failed")
	}
	return created(c, waitlistViewOf(entry))
}

// Mine lists the caller's waitlist entries.
func (h *WaitlistHandler) Mine(c echo.Context) error {
	uid, authed := currentUserID(c)
	if !authed {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	entries, err := h.Waitlist.ListByUser(ctx, uid)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "list waitlist failed")
	}
	return ok(c, echo.Map{"waitlist": waitlistViews(entries)})
}

// Remove deletes the caller's own entry.
func (h *WaitlistHandler) Remove(c echo.Context) error {
	uid, authed := currentUserID(c)
	if !authed {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	id := pathID(c, "id")
	if id == 0 {
		return fail(c, http.StatusBadRequest, "invalid waitlist id")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	entry, err := h.Waitlist.GetByID(ctx, id)
	if err == sql.ErrNoRows {
		return fail(c, http.StatusNotFound, "waitlist entry not found")
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "load waitlist entry failed")
	}
	if entry.UserID != uid {
		return fail(c, http.StatusForbidden, "you do not own this waitlist entry")
	}
	if err := h.Waitlist.Delete(ctx, id); err != nil {
		return fail(c, http.StatusInternalServerError, "remove waitlist entry failed")
	}
	return ok(c, echo.Map{"removed": true})
}

// DrainWaitlistTier notifies waiting users after seats return to a tier:
// stale entries are expired, then the front of the line (whose requested
// quantity fits the live availability) is emailed and marked notified.
// Notification is advisory, no seats are held, and every failure is
// logged and swallowed so the triggering cancellation never fails.
func DrainWaitlistTier(ctx context.Context, amqpURL string, events tierReader,
	waitlist waitlistStore, event model.Event, tierName string) {
	now := time.Now().UTC()

	if err := waitlist.ExpireStale(ctx, event.ID, tierName, now); err != nil {
		log.Printf("waitlist: expire stale for event %d tier %q failed: %v", event.ID, tierName, err)
		return
	}

	available, err := events.TierAvailability(ctx, event.ID, tierName)
	if err != nil || available == 0 {
		if err != nil {
			log.Printf("waitlist: read availability for event %d tier %q failed: %v", event.ID, tierName, err)
		}
		return
	}

	entries, err := waitlist.NextInLine(ctx, event.ID, tierName, available, notifyBatchSize)
	if err != nil {
		log.Printf("waitlist: select entries for event %d tier %q failed: %v", event.ID, tierName, err)
		return
	}

	for _, entry := range entries {
		err := notifier.PublishEmail(ctx, amqpURL, queue.EmailMessage{
			To:       entry.UserEmail,
			Template: queue.TemplateWaitlistNotify,
			Subject:  "Tickets available: " + event.Title,
			Data: map[string]interface{}{
				"name":             entry.UserName,
				"eventTitle":       event.Title,
				"tierName":         tierName,
				"quantity":         entry.Quantity,
				"responseDeadline": now.Add(model.ResponseWindow),
			},
		})
		if err != nil {
			// Leave the entry active so the next drain retries it.
			log.Printf("waitlist: notify entry %d failed: %v", entry.ID, err)
			continue
		}
		if err := waitlist.MarkNotified(ctx, entry.ID, now); err != nil {
			log.Printf("waitlist: mark entry %d notified failed: %v", entry.ID, err)
		}
	}
}
