package http

import (
	"github.com/gofiber/fiber/v2"
)

// SetupRoutes configures all HTTP routes
func SetupRoutes(app *fiber.App, handler *Handler) {
	// Health check
	app.Get("/health", handler.HealthCheck)

	// Point scoring
	app.Get("/risk", handler.GetRisk)

	// Two-step route selection, scoped by session
	app.Post("/get-cords", handler.SetCoordinates)
	app.Get("/find-safest-route", handler.FindSafestRoute)
	app.Get("/route-risk", handler.GetRouteRisk)
}
