package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventhorizon/eventhorizon/internal/config"
	"github.com/eventhorizon/eventhorizon/internal/utils"
)

func invoke(mw echo.MiddlewareFunc, req *http.Request) *httptest.ResponseRecorder {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	handler := mw(func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"success": true})
	})
	_ = handler(c)
	return rec
}

func TestJWTAuthRejectsMissingAndBadTokens(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/bookings", nil)
	rec := invoke(JWTAuth("secret"), req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/bookings", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	rec = invoke(JWTAuth("secret"), req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthStoresClaims(t *testing.T) {
	at, err := utils.NewAccessToken("secret", 9, "organizer", 5)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/organizer/events", nil)
	req.Header.Set("Authorization", "Bearer "+at.Token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var gotUID, gotRole interface{}
	handler := JWTAuth("secret")(func(c echo.Context) error {
		gotUID = c.Get("user_id")
		gotRole = c.Get("role")
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	assert.Equal(t, float64(9), gotUID)
	assert.Equal(t, "organizer", gotRole)
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	mw := RequireRole("organizer", "admin")

	run := func(role interface{}) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		if role != nil {
			c.Set("role", role)
		}
		_ = mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, run("organizer"))
	assert.Equal(t, http.StatusOK, run("admin"))
	assert.Equal(t, http.StatusForbidden, run("user"))
	assert.Equal(t, http.StatusForbidden, run(nil))
}

func TestCacheKeyStableAcrossRequests(t *testing.T) {
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}
	e := echo.New()

	key := func(target string) string {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		c := e.NewContext(req, httptest.NewRecorder())
		c.SetPath("/v1/events")
		return cacheKeyFor(cfg, c)
	}

	assert.Equal(t, key("/v1/events?category=music"), key("/v1/events?category=music"))
	assert.NotEqual(t, key("/v1/events?category=music"), key("/v1/events?category=tech"))
}

func TestRateKeyUsesSubjectWhenPresent(t *testing.T) {
	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_user_route"}
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/bookings", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/bookings")

	anon := buildRateKey(cfg, c)
	assert.Contains(t, anon, "user:anon")

	c.Set("user_id", float64(42))
	authed := buildRateKey(cfg, c)
	assert.Contains(t, authed, "user:42")
	assert.NotEqual(t, anon, authed)
}
