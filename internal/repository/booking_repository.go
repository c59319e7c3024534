package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/seatwise/internal/database"
	"github.com/iliyamo/seatwise/internal/model"
)

// BookingRepo persists the booking log.  Rows are only ever inserted.
type BookingRepo struct {
	db *sqlx.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sqlx.DB) *BookingRepo { return &BookingRepo{db: db} }

// bookingRecord mirrors the bookings table.
type bookingRecord struct {
	TicketID string    `db:"ticket_id"`
	Seats    []byte    `db:"seats"`
	Amount   int64     `db:"amount"`
	BookedAt time.Time `db:"booked_at"`
}

// Create appends a booking.  The seat snapshot is stored as JSON.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	seats, err := json.Marshal(b.Seats)
	if err != nil {
		return fmt.Errorf("encode booking seats: %w", err)
	}
	const q = `INSERT INTO bookings (ticket_id, seats, amount, booked_at) VALUES (?, ?, ?, ?)`
	if _, err := querier(ctx, r.db).ExecContext(ctx, q, b.TicketID, seats, b.Amount, b.BookedAt); err != nil {
		if database.IsDuplicateKey(err) {
			return ErrDuplicateTicket
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// GetByTicketID loads a booking by its ticket id.
func (r *BookingRepo) GetByTicketID(ctx context.Context, ticketID string) (*model.Booking, error) {
	const q = `SELECT ticket_id, seats, amount, booked_at FROM bookings WHERE ticket_id = ?`
	var rec bookingRecord
	if err := sqlx.GetContext(ctx, querier(ctx, r.db), &rec, q, ticketID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	b := &model.Booking{TicketID: rec.TicketID, Amount: rec.Amount, BookedAt: rec.BookedAt.UTC()}
	if err := json.Unmarshal(rec.Seats, &b.Seats); err != nil {
		return nil, fmt.Errorf("decode booking seats: %w", err)
	}
	return b, nil
}
