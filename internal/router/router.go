package router // package router wires handlers and middleware onto Echo

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/seatwise/internal/handler"
	"github.com/iliyamo/seatwise/internal/middleware"
)

// SeatsPath is the cached listing route; bookings invalidate it.
const SeatsPath = "/seats"

// Deps groups what the routes need.  Cache and RateLimit may be
// pass-through middleware when Redis is not available.
type Deps struct {
	Seats     *handler.SeatHandler
	Bookings  *handler.BookingHandler
	Health    *handler.HealthHandler
	Cache     *middleware.ResponseCache
	RateLimit echo.MiddlewareFunc
}

// New builds the Echo instance with every route of the API.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler

	e.Use(echomw.Recover())
	e.Use(middleware.Correlation())
	e.Use(echomw.BodyLimit("64K"))

	Register(e, d)
	return e
}

// Register maps the API routes onto e.
func Register(e *echo.Echo, d Deps) {
	rateLimit := d.RateLimit
	if rateLimit == nil {
		rateLimit = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	e.GET("/healthz", d.Health.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// The seat map is read far more often than it changes; serve it from
	// the response cache and drop the entry on every booking.
	e.GET(SeatsPath, d.Seats.ListSeats, d.Cache.Middleware())
	e.POST("/book", d.Bookings.Book, rateLimit)

	e.GET("/bookings/:ticketId", d.Bookings.GetBooking)
	e.GET("/tickets/verify", d.Bookings.VerifyPass)
}
