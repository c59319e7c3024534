package handler

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seatwise/internal/model"
	"github.com/iliyamo/seatwise/internal/service"
)

type SeatLister interface {
	List(ctx context.Context) (service.Inventory, error)
}

// SeatHandler serves the seat inventory.
type SeatHandler struct {
	Inventory SeatLister
}

type seatsResponse struct {
	Seats   []model.Seat `json:"seats"`
	Stands  []string     `json:"stands"`
	Levels  []string     `json:"levels"`
	Rows    []string     `json:"rows"`
	Columns int          `json:"columns"`
}

// ListSeats returns every seat plus the grid dimensions the UI needs to
// draw stands, levels and rows.  The inventory is seeded on first call.
func (h *SeatHandler) ListSeats(c echo.Context) error {
	inv, err := h.Inventory.List(c.Request().Context())
	if err != nil {
		return internalError(err)
	}
	seats := inv.Seats
	if seats == nil {
		seats = []model.Seat{}
	}
	return ok(c, seatsResponse{
		Seats:   seats,
		Stands:  inv.Layout.Stands,
		Levels:  inv.Layout.Levels,
		Rows:    inv.Layout.Rows,
		Columns: inv.Layout.Columns,
	})
}
