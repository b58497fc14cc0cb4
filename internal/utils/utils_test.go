package utils

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass", 4)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "s3cret-pass"))
	assert.False(t, VerifyPassword(hash, "wrong"))
}

func TestAccessTokenClaims(t *testing.T) {
	at, err := NewAccessToken("test-secret", 42, "organizer", 15)
	require.NoError(t, err)

	parsed, err := jwt.Parse(at.Token, func(tok *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, float64(42), claims["sub"])
	assert.Equal(t, "organizer", claims["role"])
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), at.Exp, 5*time.Second)
}

func TestRefreshTokenHashIsStable(t *testing.T) {
	rt, err := NewRefreshToken(30)
	require.NoError(t, err)
	assert.Len(t, rt.Raw, 96)
	assert.Equal(t, HashRefreshRaw(rt.Raw), HashRefreshRaw(rt.Raw))
	assert.NotEqual(t, rt.Raw, HashRefreshRaw(rt.Raw))
}

func TestNewReferralCode(t *testing.T) {
	code := NewReferralCode("Jane Doe")
	assert.True(t, strings.HasPrefix(code, "janedoe-"))
	assert.NotEqual(t, code, NewReferralCode("Jane Doe"))

	assert.True(t, strings.HasPrefix(NewReferralCode("   "), "user-"))

	long := NewReferralCode("someone with a very long display name")
	parts := strings.Split(long, "-")
	assert.LessOrEqual(t, len(parts[0]), 20)
}

func TestNewBookingReference(t *testing.T) {
	ref := NewBookingReference()
	assert.True(t, strings.HasPrefix(ref, "EH-"))
	assert.Len(t, ref, 11)
	assert.Equal(t, ref, strings.ToUpper(ref))
}

func TestBookingQRRoundTrip(t *testing.T) {
	dataURL, err := GenerateBookingQR("17", "EH-9F0A2C4D")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dataURL, "data:image/png;base64,"))

	payload, _ := json.Marshal(map[string]interface{}{
		"bookingId": "17",
		"reference": "EH-9F0A2C4D",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"verified":  true,
	})
	id, ok := VerifyBookingQR(string(payload))
	assert.True(t, ok)
	assert.Equal(t, "17", id)

	_, ok = VerifyBookingQR("not-json")
	assert.False(t, ok)
	_, ok = VerifyBookingQR(`{"bookingId":"","verified":true}`)
	assert.False(t, ok)
}
