package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventhorizon/eventhorizon/internal/analytics"
	"github.com/eventhorizon/eventhorizon/internal/model"
)

func eventUnderUpdate(now time.Time) model.Event {
	return model.Event{
		ID:       5,
		Title:    "Original",
		StartsAt: now.Add(48 * time.Hour),
		EndsAt:   now.Add(50 * time.Hour),
		Status:   model.EventStatusPublished,
		CancellationPolicy: model.CancellationPolicy{
			RefundDeadlineHours: 24,
			RefundPercentage:    80,
		},
		DynamicPricing: model.DynamicPricing{
			Enabled:             true,
			PriceIncreaseFactor: 1.1,
			DemandThreshold:     0.8,
		},
	}
}

func TestApplyUpdateKeepsOmittedPricingToggle(t *testing.T) {
	now := time.Now().UTC()
	e := eventUnderUpdate(now)

	req := eventReq{Title: "Renamed"}
	require.Empty(t, req.applyUpdate(&e, now))

	assert.Equal(t, "Renamed", e.Title)
	assert.True(t, e.DynamicPricing.Enabled, "a partial update must not flip the pricing toggle")
	assert.Equal(t, 1.1, e.DynamicPricing.PriceIncreaseFactor)
}

func TestApplyUpdateDisablesPricingExplicitly(t *testing.T) {
	now := time.Now().UTC()
	e := eventUnderUpdate(now)

	off := false
	req := eventReq{PricingEnabled: &off}
	require.Empty(t, req.applyUpdate(&e, now))
	assert.False(t, e.DynamicPricing.Enabled)

	on := true
	req = eventReq{PricingEnabled: &on}
	require.Empty(t, req.applyUpdate(&e, now))
	assert.True(t, e.DynamicPricing.Enabled)
}

func TestApplyUpdateRejectsPastStart(t *testing.T) {
	now := time.Now().UTC()
	e := eventUnderUpdate(now)
	before := e.StartsAt

	req := eventReq{StartsAt: now.Add(-time.Hour)}
	assert.Equal(t, "event start must be in the future", req.applyUpdate(&e, now))
	assert.Equal(t, before, e.StartsAt)

	req = eventReq{StartsAt: now}
	assert.Equal(t, "event start must be in the future", req.applyUpdate(&e, now))
}

func TestApplyUpdateRejectsEndBeforeStart(t *testing.T) {
	now := time.Now().UTC()
	e := eventUnderUpdate(now)

	// Moving the start past the unchanged end must fail too.
	req := eventReq{StartsAt: now.Add(72 * time.Hour)}
	assert.Equal(t, "event end must be after its start", req.applyUpdate(&e, now))

	e = eventUnderUpdate(now)
	req = eventReq{EndsAt: e.StartsAt.Add(-time.Minute)}
	assert.Equal(t, "event end must be after its start", req.applyUpdate(&e, now))
}

func TestCountViewBumpsCounterBeforeNext(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectIncr("analytics:event:7:views").SetVal(1)

	h := &EventPublicHandler{Recorder: analytics.NewRecorder(rdb)}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/events/7", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/events/:id")
	c.SetParamNames("id")
	c.SetParamValues("7")

	// next stands in for the cache middleware serving a stored response;
	// the view must be counted even though Get never runs.
	served := false
	handler := h.CountView()(func(c echo.Context) error {
		served = true
		return c.JSON(http.StatusOK, echo.Map{"success": true})
	})
	require.NoError(t, handler(c))
	assert.True(t, served)
	assert.NoError(t, mock.ExpectationsWereMet())
}
