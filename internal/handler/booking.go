package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seatwise/internal/log"
	"github.com/iliyamo/seatwise/internal/model"
	"github.com/iliyamo/seatwise/internal/repository"
	"github.com/iliyamo/seatwise/internal/service"
)

// Booker is the part of service.BookingService the HTTP layer uses.
type Booker interface {
	Book(ctx context.Context, seatIDs []string) (*model.Booking, error)
	Get(ctx context.Context, ticketID string) (*model.Booking, error)
	IssuePass(b *model.Booking) (string, error)
	VerifyPass(ctx context.Context, raw string) (*model.Booking, error)
}

type BookingHandler struct {
	Bookings Booker
}

type bookRequest struct {
	SeatIDs []string `json:"seatIds"`
}

type bookResponse struct {
	*model.Booking
	Pass string `json:"pass,omitempty"`
}

var (
	errInvalidSeatIDs  = echo.NewHTTPError(http.StatusBadRequest, "Invalid seatIds")
	errSeatsTaken      = echo.NewHTTPError(http.StatusConflict, "Some seats are not available")
	errBookingNotFound = echo.NewHTTPError(http.StatusNotFound, "Booking not found")
)

// Book commits the requested seats and returns the booking.  Either every
// seat is booked or none is.
func (h *BookingHandler) Book(c echo.Context) error {
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return errInvalidSeatIDs
	}

	b, err := h.Bookings.Book(c.Request().Context(), req.SeatIDs)
	switch {
	case errors.Is(err, service.ErrInvalidSeatIDs):
		return errInvalidSeatIDs
	case errors.Is(err, service.ErrSeatsUnavailable):
		return errSeatsTaken
	case err != nil:
		return internalError(err)
	}

	resp := bookResponse{Booking: b}
	pass, err := h.Bookings.IssuePass(b)
	switch {
	case err == nil:
		resp.Pass = pass
	case !errors.Is(err, service.ErrPassesDisabled):
		// the booking is committed; a missing pass must not turn it into a failure
		log.FromContext(c.Request().Context()).WithError(err).WithField("ticket_id", b.TicketID).Warn("Failed to issue ticket pass")
	}
	return ok(c, resp)
}

// GetBooking returns the booking recorded under :ticketId.
func (h *BookingHandler) GetBooking(c echo.Context) error {
	b, err := h.Bookings.Get(c.Request().Context(), c.Param("ticketId"))
	if errors.Is(err, repository.ErrBookingNotFound) {
		return errBookingNotFound
	}
	if err != nil {
		return internalError(err)
	}
	return ok(c, b)
}

type verifyResponse struct {
	TicketID string   `json:"ticketId"`
	Seats    []string `json:"seats"`
	Amount   int64    `json:"amount"`
}

// VerifyPass checks the ?pass= token against the booking log.
func (h *BookingHandler) VerifyPass(c echo.Context) error {
	raw := c.QueryParam("pass")
	if raw == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing pass")
	}
	b, err := h.Bookings.VerifyPass(c.Request().Context(), raw)
	switch {
	case errors.Is(err, service.ErrPassesDisabled):
		return echo.NewHTTPError(http.StatusNotFound, "Ticket passes are disabled")
	case errors.Is(err, service.ErrInvalidPass):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid ticket pass")
	case errors.Is(err, repository.ErrBookingNotFound):
		return errBookingNotFound
	case err != nil:
		return internalError(err)
	}
	return ok(c, verifyResponse{TicketID: b.TicketID, Seats: b.SeatIDs(), Amount: b.Amount})
}
