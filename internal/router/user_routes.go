package router

import (
	"github.com/labstack/echo/v4"

	"github.com/eventhorizon/eventhorizon/internal/handler"
	"github.com/eventhorizon/eventhorizon/internal/middleware"
	"github.com/eventhorizon/eventhorizon/internal/model"
)

// RegisterUser wires the endpoints every authenticated account can use:
// bookings, waitlist membership and the referral program.
func RegisterUser(e *echo.Echo, b *handler.BookingHandler, w *handler.WaitlistHandler,
	r *handler.ReferralHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleUser, model.RoleOrganizer, model.RoleAdmin))

	g.POST("/bookings", b.Create)
	g.GET("/bookings/me", b.Mine)
	g.GET("/bookings/:id", b.Get)
	g.PUT("/bookings/:id/cancel", b.Cancel)
	g.PUT("/bookings/:id/payment", b.UpdatePayment)

	g.POST("/waitlist", w.Join)
	g.GET("/waitlist/me", w.Mine)
	g.DELETE("/waitlist/:id", w.Remove)

	g.GET("/referrals/me", r.Mine)
	g.PUT("/referrals/:id/claim", r.Claim)
}
