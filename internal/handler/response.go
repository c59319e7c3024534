package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seatwise/internal/log"
)

// Response is the envelope of every JSON body the API writes.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// ErrorHandler renders errors returned by handlers and by Echo itself (404,
// 405, body limit, ...) in the Response envelope.  Anything that is not an
// *echo.HTTPError is logged and reported as a bare 500.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	msg := http.StatusText(status)

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		switch m := he.Message.(type) {
		case string:
			msg = m
		case error:
			msg = m.Error()
		default:
			msg = http.StatusText(status)
		}
		if he.Internal != nil && status >= http.StatusInternalServerError {
			log.FromContext(c.Request().Context()).WithError(he.Internal).Error("Request failed")
		}
	} else {
		log.FromContext(c.Request().Context()).WithError(err).Error("Request failed")
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = c.JSON(status, Response{Success: false, Error: msg})
	}
	if werr != nil {
		log.FromContext(c.Request().Context()).WithError(werr).Warn("Failed to write error response")
	}
}

// internalError hides err from the client and keeps it for the log.
func internalError(err error) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)).SetInternal(err)
}
