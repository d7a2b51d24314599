package http

import (
	"context"

	"rtdb-bridge/internal/shared/contextkeys"
	"rtdb-bridge/internal/shared/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns each request an id, honouring one sent by the client, and
// stores it in the user context for logging.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDHeader, id)
		c.Locals("requestID", id)
		c.SetUserContext(context.WithValue(c.UserContext(), contextkeys.RequestIDKey, id))
		return c.Next()
	}
}

// RequestMetrics counts requests by method and final status.
func RequestMetrics(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		m.ObserveRequest(c.Method(), status)
		return err
	}
}
