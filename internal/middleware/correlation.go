package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/seatwise/internal/log"
)

// HeaderCorrelationID carries the id that ties log lines of one request
// together.
const HeaderCorrelationID = "Correlation-ID"

// Correlation reuses the caller's Correlation-ID or mints one, echoes it
// back and stores a logger tagged with it in the request context.
func Correlation() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(HeaderCorrelationID)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			c.Response().Header().Set(HeaderCorrelationID, id)

			r := c.Request()
			entry := logrus.WithFields(logrus.Fields{
				"correlation_id": id,
				"method":         r.Method,
				"path":           r.URL.Path,
			})
			c.SetRequest(r.WithContext(log.ToContext(r.Context(), entry)))
			return next(c)
		}
	}
}
