package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventhorizon/eventhorizon/internal/config"
	"github.com/eventhorizon/eventhorizon/internal/model"
)

type fakeTierReader struct {
	event model.Event
	avail uint32
}

func (f *fakeTierReader) GetByID(ctx context.Context, id uint64) (model.Event, error) {
	return f.event, nil
}

func (f *fakeTierReader) TierAvailability(ctx context.Context, eventID uint64, tierName string) (uint32, error) {
	return f.avail, nil
}

// fakeWaitlistStore keeps entries in memory and records the order of the
// calls made against it, mirroring the SQL repository's state rules.
type fakeWaitlistStore struct {
	calls   []string
	entries []model.WaitlistEntry
}

func (f *fakeWaitlistStore) Create(ctx context.Context, e *model.WaitlistEntry) error {
	f.calls = append(f.calls, "Create")
	e.ID = uint64(len(f.entries) + 1)
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeWaitlistStore) ExpireStale(ctx context.Context, eventID uint64, tierName string, now time.Time) error {
	f.calls = append(f.calls, "ExpireStale")
	for i := range f.entries {
		w := &f.entries[i]
		if w.EventID != eventID || w.TierName != tierName {
			continue
		}
		active := w.Status == model.WaitlistStatusActive && !now.Before(w.ExpiresAt)
		notified := w.Status == model.WaitlistStatusNotified && !now.Before(w.ResponseDeadline)
		if active || notified {
			w.Status = model.WaitlistStatusExpired
		}
	}
	return nil
}

func (f *fakeWaitlistStore) HasActiveEntry(ctx context.Context, userID, eventID uint64, tierName string) (bool, error) {
	f.calls = append(f.calls, "HasActiveEntry")
	for _, w := range f.entries {
		if w.UserID == userID && w.EventID == eventID && w.TierName == tierName &&
			w.Status == model.WaitlistStatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeWaitlistStore) NextInLine(ctx context.Context, eventID uint64, tierName string, available uint32, limit int) ([]model.WaitlistEntry, error) {
	f.calls = append(f.calls, "NextInLine")
	return nil, nil
}

func (f *fakeWaitlistStore) MarkNotified(ctx context.Context, id uint64, now time.Time) error {
	f.calls = append(f.calls, "MarkNotified")
	return nil
}

func (f *fakeWaitlistStore) GetByID(ctx context.Context, id uint64) (model.WaitlistEntry, error) {
	f.calls = append(f.calls, "GetByID")
	return model.WaitlistEntry{}, nil
}

func (f *fakeWaitlistStore) Delete(ctx context.Context, id uint64) error {
	f.calls = append(f.calls, "Delete")
	return nil
}

func (f *fakeWaitlistStore) ListByUser(ctx context.Context, userID uint64) ([]model.WaitlistEntry, error) {
	f.calls = append(f.calls, "ListByUser")
	return nil, nil
}

func soldOutEvent() model.Event {
	return model.Event{
		ID:     3,
		Title:  "Sold Out Show",
		Status: model.EventStatusPublished,
		Tiers: []model.TicketTier{
			{Name: "General", TotalSeats: 100, AvailableSeats: 0},
		},
	}
}

func postJoin(h *WaitlistHandler, userID uint64, body string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/waitlist", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", float64(userID))
	_ = h.Join(c)
	return rec
}

func TestJoinRefusedWhileSeatsAvailable(t *testing.T) {
	ev := soldOutEvent()
	ev.Tiers[0].AvailableSeats = 4
	store := &fakeWaitlistStore{}
	h := &WaitlistHandler{Cfg: config.Config{}, Events: &fakeTierReader{event: ev}, Waitlist: store}

	rec := postJoin(h, 7, `{"eventId":3,"tierName":"General","quantity":2}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.calls, "a bookable tier must not touch the waitlist")
}

func TestJoinRejectsDuplicateActiveEntry(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeWaitlistStore{entries: []model.WaitlistEntry{{
		ID: 1, UserID: 7, EventID: 3, TierName: "General",
		Status:    model.WaitlistStatusActive,
		ExpiresAt: now.Add(model.WaitlistTTL),
	}}}
	h := &WaitlistHandler{Cfg: config.Config{}, Events: &fakeTierReader{event: soldOutEvent()}, Waitlist: store}

	rec := postJoin(h, 7, `{"eventId":3,"tierName":"General","quantity":1}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	// Stale rows must be expired before the uniqueness check consults them.
	require.Equal(t, []string{"ExpireStale", "HasActiveEntry"}, store.calls)
}

func TestJoinSucceedsAfterEntryExpires(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeWaitlistStore{entries: []model.WaitlistEntry{{
		ID: 1, UserID: 7, EventID: 3, TierName: "General",
		Status:    model.WaitlistStatusActive,
		ExpiresAt: now.Add(-time.Hour),
	}}}
	h := &WaitlistHandler{Cfg: config.Config{}, Events: &fakeTierReader{event: soldOutEvent()}, Waitlist: store}

	rec := postJoin(h, 7, `{"eventId":3,"tierName":"General","quantity":2,"maxPrice":80}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, []string{"ExpireStale", "HasActiveEntry", "Create"}, store.calls)

	assert.Equal(t, model.WaitlistStatusExpired, store.entries[0].Status)
	fresh := store.entries[1]
	assert.Equal(t, uint64(7), fresh.UserID)
	assert.Equal(t, model.WaitlistStatusActive, fresh.Status)
	assert.Equal(t, uint32(2), fresh.Quantity)
	assert.WithinDuration(t, now.Add(model.WaitlistTTL), fresh.ExpiresAt, 5*time.Second)
	assert.WithinDuration(t, now.Add(model.ResponseWindow), fresh.ResponseDeadline, 5*time.Second)
}

func TestJoinRejectsUnknownTier(t *testing.T) {
	store := &fakeWaitlistStore{}
	h := &WaitlistHandler{Cfg: config.Config{}, Events: &fakeTierReader{event: soldOutEvent()}, Waitlist: store}

	rec := postJoin(h, 7, `{"eventId":3,"tierName":"Balcony","quantity":1}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, store.calls)
}
