package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eventhorizon/eventhorizon/internal/model"
)

func TestReferralDiscountFor(t *testing.T) {
	referrer := &model.User{ID: 2}

	d := referralDiscountFor("alice123", referrer, 7, 100)
	assert.Equal(t, 5.0, d.Amount)
	assert.Equal(t, "alice123", d.Code)
	assert.Equal(t, model.DiscountTypeReferral, d.Type)

	// A code that resolved to nobody books at full price, it never fails
	// the booking.
	assert.Equal(t, model.Discount{}, referralDiscountFor("ghost99", nil, 7, 100))

	// Same for a user's own code.
	assert.Equal(t, model.Discount{}, referralDiscountFor("self123", &model.User{ID: 7}, 7, 100))
}

func TestReferralDiscountForHonorsCap(t *testing.T) {
	referrer := &model.User{ID: 2}
	d := referralDiscountFor("alice123", referrer, 7, 10000)
	assert.Equal(t, 25.0, d.Amount)
}
