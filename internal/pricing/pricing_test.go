package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/eventhorizon/eventhorizon/internal/model"
)

func testEvent(enabled bool, start time.Time) model.Event {
	return model.Event{
		StartsAt: start,
		DynamicPricing: model.DynamicPricing{
			Enabled:             enabled,
			PriceIncreaseFactor: 1.1,
			DemandThreshold:     0.8,
		},
	}
}

func tierWith(base float64, total, available uint32) model.TicketTier {
	return model.TicketTier{Name: "General", BasePrice: base, TotalSeats: total, AvailableSeats: available}
}

func TestCurrentPriceDisabledReturnsBase(t *testing.T) {
	now := time.Now().UTC()
	// Sold out and starting within the hour: still the base price.
	ev := testEvent(false, now.Add(time.Hour))
	got := CurrentPrice(tierWith(99.5, 100, 0), ev, now)
	assert.Equal(t, 99.5, got)
}

func TestCurrentPriceDemandThreshold(t *testing.T) {
	now := time.Now().UTC()
	// Far outside the proximity window so only demand applies.
	ev := testEvent(true, now.Add(2000*time.Hour))

	below := CurrentPrice(tierWith(100, 100, 25), ev, now) // 75% sold
	atThreshold := CurrentPrice(tierWith(100, 100, 20), ev, now)
	above := CurrentPrice(tierWith(100, 100, 15), ev, now)

	assert.Equal(t, 100.0, below)
	assert.Equal(t, 110.0, atThreshold)
	assert.Equal(t, 110.0, above)
	assert.Greater(t, atThreshold, below)
}

func TestCurrentPriceProximityRampIsMonotonic(t *testing.T) {
	now := time.Now().UTC()
	tier := tierWith(100, 100, 100) // nothing sold, demand multiplier off

	prev := 0.0
	for _, hours := range []float64{168, 120, 84, 48, 12, 1} {
		ev := testEvent(true, now.Add(time.Duration(hours*float64(time.Hour))))
		price := CurrentPrice(tier, ev, now)
		assert.GreaterOrEqual(t, price, prev, "price must not drop as the event nears (%.0fh)", hours)
		prev = price
	}
	// At the window edge the uplift is zero; near zero hours it approaches +20%.
	edge := CurrentPrice(tier, testEvent(true, now.Add(168*time.Hour)), now)
	close := CurrentPrice(tier, testEvent(true, now.Add(time.Minute)), now)
	assert.Equal(t, 100.0, edge)
	assert.Equal(t, 120.0, close)
}

func TestCurrentPriceMultipliersCompound(t *testing.T) {
	now := time.Now().UTC()
	// 85% sold, 84 hours out: 1.1 * (1 + (1-84/168)*0.2) = 1.1 * 1.1 = 1.21.
	ev := testEvent(true, now.Add(84*time.Hour))
	got := CurrentPrice(tierWith(100, 100, 15), ev, now)
	assert.Equal(t, 121.0, got)
}

func TestCurrentPriceNoUpliftAfterStart(t *testing.T) {
	now := time.Now().UTC()
	ev := testEvent(true, now.Add(-time.Hour))
	got := CurrentPrice(tierWith(100, 100, 100), ev, now)
	assert.Equal(t, 100.0, got)
}

func TestCurrentPricesCoversAllTiers(t *testing.T) {
	now := time.Now().UTC()
	ev := testEvent(true, now.Add(84*time.Hour))
	ev.Tiers = []model.TicketTier{
		{Name: "General", BasePrice: 100, TotalSeats: 100, AvailableSeats: 15},
		{Name: "VIP", BasePrice: 250, TotalSeats: 20, AvailableSeats: 20},
	}
	prices := CurrentPrices(ev, now)
	assert.Equal(t, 121.0, prices["General"])
	assert.Equal(t, 275.0, prices["VIP"]) // 250 * 1.1 proximity uplift at 84h
	assert.Len(t, prices, 2)
}
