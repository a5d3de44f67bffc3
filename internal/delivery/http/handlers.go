package http

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saferoute/backend/internal/domain"
	"github.com/saferoute/backend/internal/service"
)

const (
	sessionHeader = "X-Session-ID"
	sessionCookie = "session_id"
)

// Handler contains all HTTP handlers
type Handler struct {
	riskSvc  *service.RiskService
	routeSvc *service.RouteService
	repo     service.DataRepository
	logger   *zap.Logger
}

// NewHandler creates a new handler
func NewHandler(riskSvc *service.RiskService, routeSvc *service.RouteService, repo service.DataRepository, logger *zap.Logger) *Handler {
	return &Handler{
		riskSvc:  riskSvc,
		routeSvc: routeSvc,
		repo:     repo,
		logger:   logger,
	}
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	storage := "ok"
	if err := h.repo.Health(c.UserContext()); err != nil {
		h.logger.Warn("storage health check failed", zap.Error(err))
		storage = "error"
	}

	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "saferoute-backend",
		"version": "1.0.0",
		"storage": storage,
	})
}

// GetRisk scores a single point. Upstream outages degrade to default signal
// values, so this only fails on bad parameters.
func (h *Handler) GetRisk(c *fiber.Ctx) error {
	point, err := coordinateQuery(c, "lat", "lon")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	userReports := 0.0
	if raw := c.Query("userReports"); raw != "" {
		userReports, err = strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(userReports) || userReports < 0 || userReports > 1 {
			return fiber.NewError(fiber.StatusBadRequest, "userReports must be a number in [0, 1]")
		}
	}

	return c.JSON(h.riskSvc.PointRisk(c.UserContext(), point, userReports))
}

// SetCoordinates stores the origin and destination for the caller's session,
// minting a session when the request carries none
func (h *Handler) SetCoordinates(c *fiber.Ctx) error {
	origin, err := coordinateQuery(c, "start_lat", "start_lon")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	destination, err := coordinateQuery(c, "end_lat", "end_lon")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	sessionID := sessionFrom(c)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	req := domain.PendingRouteRequest{Origin: origin, Destination: destination}
	if err := h.routeSvc.SetPending(c.UserContext(), sessionID, req); err != nil {
		h.logger.Error("failed to store coordinates", zap.String("session", sessionID), zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to store coordinates")
	}

	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    sessionID,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	c.Set(sessionHeader, sessionID)

	return c.JSON(fiber.Map{
		"status":     "success",
		"message":    "Coordinates received",
		"session_id": sessionID,
	})
}

// FindSafestRoute returns the lowest-risk alternative as [lat, lon] pairs
func (h *Handler) FindSafestRoute(c *fiber.Ctx) error {
	sessionID := sessionFrom(c)
	if sessionID == "" {
		return fiber.NewError(fiber.StatusBadRequest, domain.ErrCoordinatesNotSet.Error())
	}

	result, err := h.routeSvc.FindSafestRoute(c.UserContext(), sessionID)
	if err != nil {
		var noRoute *domain.NoRouteError
		switch {
		case errors.Is(err, domain.ErrCoordinatesNotSet):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.As(err, &noRoute):
			return fiber.NewError(fiber.StatusBadRequest, noRoute.Message)
		default:
			h.logger.Error("route selection failed", zap.String("session", sessionID), zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
	}

	pairs := make([][2]float64, len(result.Route.Geometry))
	for i, p := range result.Route.Geometry {
		pairs[i] = p.Pair()
	}
	return c.JSON(pairs)
}

// GetRouteRisk returns the session's last selected route risk as a bare number
func (h *Handler) GetRouteRisk(c *fiber.Ctx) error {
	sessionID := sessionFrom(c)
	if sessionID == "" {
		return c.JSON(0)
	}

	risk, err := h.routeSvc.LastRouteRisk(c.UserContext(), sessionID)
	if err != nil {
		h.logger.Error("failed to load route risk", zap.String("session", sessionID), zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to load route risk")
	}
	return c.JSON(risk)
}

// ErrorHandler renders errors as {"error": true, "message": ...}
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}

func sessionFrom(c *fiber.Ctx) string {
	if id := strings.TrimSpace(c.Get(sessionHeader)); id != "" {
		return id
	}
	return strings.TrimSpace(c.Cookies(sessionCookie))
}

func coordinateQuery(c *fiber.Ctx, latKey, lonKey string) (domain.Coordinate, error) {
	rawLat, rawLon := c.Query(latKey), c.Query(lonKey)
	if rawLat == "" || rawLon == "" {
		return domain.Coordinate{}, errors.New(latKey + " and " + lonKey + " query parameters are required")
	}
	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil {
		return domain.Coordinate{}, errors.New(latKey + " must be a number")
	}
	lon, err := strconv.ParseFloat(rawLon, 64)
	if err != nil {
		return domain.Coordinate{}, errors.New(lonKey + " must be a number")
	}

	point := domain.Coordinate{Latitude: lat, Longitude: lon}
	if err := point.Validate(); err != nil {
		return domain.Coordinate{}, err
	}
	return point, nil
}
