package router

import (
	"github.com/labstack/echo/v4"

	"github.com/eventhorizon/eventhorizon/internal/handler"
	"github.com/eventhorizon/eventhorizon/internal/middleware"
	"github.com/eventhorizon/eventhorizon/internal/model"
)

// RegisterOrganizer wires event lifecycle management. Only organizers
// and admins pass the role gate; per-event ownership is enforced in the
// handlers.
func RegisterOrganizer(e *echo.Echo, h *handler.EventOrganizerHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleOrganizer, model.RoleAdmin))

	g.POST("/events", h.Create)
	g.PUT("/events/:id", h.Update)
	g.DELETE("/events/:id", h.Delete)
	g.GET("/organizer/events", h.MyEvents)
	g.GET("/events/:id/bookings", h.EventBookings)
	g.GET("/events/:id/waitlist", h.EventWaitlist)
}
