// Package pricing computes the current price of a ticket tier from its
// base price, sell-through ratio and time to the event.  CurrentPrice is
// a pure function: the caller supplies the clock, and no state is read
// or written.
package pricing

import (
	"math"
	"time"

	"github.com/eventhorizon/eventhorizon/internal/model"
)

// proximityWindowHours is the window before the event start during which
// prices ramp up linearly, reaching +20% as the start approaches.
const (
	proximityWindowHours = 168.0
	proximityMaxUplift   = 0.2
)

// CurrentPrice returns the price a buyer pays for one ticket of the given
// tier at the given instant.  With dynamic pricing disabled it is the
// base price unchanged.  Otherwise two multipliers compose
// multiplicatively:
//
//   - demand: when the sold ratio reaches the configured threshold, the
//     price is scaled by the event's price increase factor;
//   - proximity: inside the final 168 hours the price scales by
//     1 + (1 - hoursToEvent/168) * 0.2.
//
// The result is rounded to whole currency units.
func CurrentPrice(tier model.TicketTier, event model.Event, now time.Time) float64 {
	if !event.DynamicPricing.Enabled {
		return tier.BasePrice
	}

	soldRatio := float64(tier.TotalSeats-tier.AvailableSeats) / float64(tier.TotalSeats)
	hoursToEvent := event.StartsAt.Sub(now).Hours()

	multiplier := 1.0
	if soldRatio >= event.DynamicPricing.DemandThreshold {
		multiplier *= event.DynamicPricing.PriceIncreaseFactor
	}
	if hoursToEvent > 0 && hoursToEvent <= proximityWindowHours {
		multiplier *= 1 + (1-hoursToEvent/proximityWindowHours)*proximityMaxUplift
	}

	return math.Round(tier.BasePrice * multiplier)
}

// CurrentPrices recomputes every tier of the event and returns the prices
// keyed by tier name.  Used after a reservation to persist refreshed
// price.current values for subsequent bookings.
func CurrentPrices(event model.Event, now time.Time) map[string]float64 {
	prices := make(map[string]float64, len(event.Tiers))
	for _, tier := range event.Tiers {
		prices[tier.Name] = CurrentPrice(tier, event, now)
	}
	return prices
}
