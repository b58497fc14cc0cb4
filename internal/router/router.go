// Package router maps the HTTP surface onto handlers and middleware.
// Public browse endpoints are unauthenticated (and the only ones that go
// through the response cache); everything else sits behind JWT auth,
// with the organizer group additionally role-gated.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/eventhorizon/eventhorizon/internal/config"
	"github.com/eventhorizon/eventhorizon/internal/handler"
	"github.com/eventhorizon/eventhorizon/internal/middleware"
)

// RegisterHealth exposes the load balancer probe.
func RegisterHealth(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth wires the session endpoints. Register, login, refresh and
// logout need no token; /v1/me does.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	me := e.Group("/v1")
	me.Use(middleware.JWTAuth(jwtSecret))
	me.GET("/me", a.Me)
}

// RegisterPublic wires unauthenticated event browsing and referral code
// validation. These are the read-heavy endpoints, so the Redis response
// cache fronts them.
func RegisterPublic(e *echo.Echo, p *handler.EventPublicHandler, r *handler.ReferralHandler,
	cacheCfg config.CacheConfig, rdb *redis.Client) {
	cached := e.Group("/v1", middleware.NewRedisCache(cacheCfg, rdb))
	cached.GET("/events", p.List)

	// The view counter sits in front of the cache, otherwise only cache
	// misses would count.
	e.GET("/v1/events/:id", p.Get, p.CountView(), middleware.NewRedisCache(cacheCfg, rdb))

	e.POST("/v1/events/:id/share", p.Share)
	e.GET("/v1/referrals/validate/:code", r.Validate)
}
