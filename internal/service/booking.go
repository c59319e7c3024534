package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/seatwise/internal/clock"
	"github.com/iliyamo/seatwise/internal/log"
	"github.com/iliyamo/seatwise/internal/metrics"
	"github.com/iliyamo/seatwise/internal/model"
	"github.com/iliyamo/seatwise/internal/queue"
	"github.com/iliyamo/seatwise/internal/utils"
)

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type BookableSeatStore interface {
	FindAvailableForUpdate(ctx context.Context, ids []string) ([]model.Seat, error)
	MarkUnavailable(ctx context.Context, ids []string) (int64, error)
}

type TicketIssuer interface {
	Next(ctx context.Context, at time.Time) (string, error)
}

type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByTicketID(ctx context.Context, ticketID string) (*model.Booking, error)
}

// SeatCache drops cached seat listings once a booking changes availability.
type SeatCache interface {
	Invalidate(ctx context.Context) error
}

// SeatCacheFunc adapts a function to SeatCache.
type SeatCacheFunc func(ctx context.Context) error

func (f SeatCacheFunc) Invalidate(ctx context.Context) error { return f(ctx) }

type EventPublisher interface {
	PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
}

// BookingService commits seats to bookings.
type BookingService struct {
	tx       Transactor
	seats    BookableSeatStore
	tickets  TicketIssuer
	bookings BookingStore
	clock    clock.Clock

	cache      SeatCache
	publisher  EventPublisher
	passSecret string
	passTTL    time.Duration
}

type BookingOption func(*BookingService)

// WithClock overrides the clock used for bookedAt and ticket passes.
func WithClock(c clock.Clock) BookingOption {
	return func(s *BookingService) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithSeatCache registers a cache to invalidate after each booking.
func WithSeatCache(c SeatCache) BookingOption {
	return func(s *BookingService) { s.cache = c }
}

// WithPublisher registers a publisher for booking.confirmed events.
func WithPublisher(p EventPublisher) BookingOption {
	return func(s *BookingService) { s.publisher = p }
}

// WithTicketPasses enables signed ticket passes.
func WithTicketPasses(secret string, ttl time.Duration) BookingOption {
	return func(s *BookingService) {
		s.passSecret = secret
		s.passTTL = ttl
	}
}

func NewBookingService(tx Transactor, seats BookableSeatStore, tickets TicketIssuer, bookings BookingStore, opts ...BookingOption) *BookingService {
	svc := &BookingService{
		tx:       tx,
		seats:    seats,
		tickets:  tickets,
		bookings: bookings,
		clock:    clock.NewSystem(),
		passTTL:  30 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Book commits every seat in seatIDs to a new booking, or none of them.
//
// The availability check, the status flip, the ticket id and the booking
// row share one transaction.  The seats are row-locked while checked and
// the flip only touches seats still available, so two concurrent calls for
// overlapping seats cannot both succeed.  Duplicate ids are not collapsed:
// they under-match and fail with ErrSeatsUnavailable.
func (s *BookingService) Book(ctx context.Context, seatIDs []string) (*model.Booking, error) {
	logger := log.FromContext(ctx).WithField("seats", seatIDs)

	if err := validateSeatIDs(seatIDs); err != nil {
		metrics.BookingsTotal.WithLabelValues(metrics.ResultInvalid).Inc()
		return nil, err
	}

	now := s.clock.Now()
	var booking *model.Booking
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		matched, err := s.seats.FindAvailableForUpdate(ctx, seatIDs)
		if err != nil {
			return err
		}
		if len(matched) != len(seatIDs) {
			return ErrSeatsUnavailable
		}
		flipped, err := s.seats.MarkUnavailable(ctx, seatIDs)
		if err != nil {
			return err
		}
		if flipped != int64(len(matched)) {
			return ErrSeatsUnavailable
		}
		snapshot, err := orderSeats(seatIDs, matched)
		if err != nil {
			return err
		}

		ticketID, err := s.tickets.Next(ctx, now)
		if err != nil {
			return err
		}

		booking = &model.Booking{
			TicketID: ticketID,
			Seats:    snapshot,
			Amount:   model.SumPrices(snapshot),
			BookedAt: now,
		}
		return s.bookings.Create(ctx, booking)
	})
	if err != nil {
		if errors.Is(err, ErrSeatsUnavailable) {
			metrics.BookingsTotal.WithLabelValues(metrics.ResultUnavailable).Inc()
			logger.Warn("Booking rejected, seats not available")
			return nil, err
		}
		metrics.BookingsTotal.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("book seats: %w", err)
	}

	metrics.BookingsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	metrics.BookingAmount.Add(float64(booking.Amount))
	logger.WithField("ticket_id", booking.TicketID).WithField("amount", booking.Amount).Info("Booking committed")

	s.afterCommit(ctx, booking)
	return booking, nil
}

// afterCommit runs the side effects of a committed booking.  Their failures
// are logged; the booking itself already stands.
func (s *BookingService) afterCommit(ctx context.Context, b *model.Booking) {
	logger := log.FromContext(ctx).WithField("ticket_id", b.TicketID)
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			logger.WithError(err).Warn("Failed to invalidate seat cache")
		}
	}
	if s.publisher != nil {
		ev := queue.BookingConfirmedEvent{
			TicketID: b.TicketID,
			Seats:    b.SeatIDs(),
			Amount:   b.Amount,
			BookedAt: b.BookedAt.Format(time.RFC3339),
		}
		if err := s.publisher.PublishBookingConfirmed(ctx, ev); err != nil {
			logger.WithError(err).Warn("Failed to publish booking event")
		}
	}
}

// Get returns the booking recorded for ticketID.
func (s *BookingService) Get(ctx context.Context, ticketID string) (*model.Booking, error) {
	return s.bookings.GetByTicketID(ctx, ticketID)
}

// IssuePass signs a ticket pass for b.
func (s *BookingService) IssuePass(b *model.Booking) (string, error) {
	if s.passSecret == "" {
		return "", ErrPassesDisabled
	}
	return utils.NewTicketPass(s.passSecret, b.TicketID, b.SeatIDs(), b.Amount, s.clock.Now(), s.passTTL)
}

// VerifyPass checks a pass and returns the booking it refers to.  The pass
// must match the recorded booking's amount and seats.
func (s *BookingService) VerifyPass(ctx context.Context, raw string) (*model.Booking, error) {
	if s.passSecret == "" {
		return nil, ErrPassesDisabled
	}
	claims, err := utils.ParseTicketPass(s.passSecret, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPass, err)
	}
	b, err := s.bookings.GetByTicketID(ctx, claims.TicketID)
	if err != nil {
		return nil, err
	}
	if b.Amount != claims.Amount || !equalStrings(b.SeatIDs(), claims.Seats) {
		return nil, fmt.Errorf("%w: does not match booking %s", ErrInvalidPass, b.TicketID)
	}
	return b, nil
}

func validateSeatIDs(ids []string) error {
	if len(ids) == 0 {
		return ErrInvalidSeatIDs
	}
	for _, id := range ids {
		if _, err := model.ParseSeatID(id); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSeatIDs, err)
		}
	}
	return nil
}

// orderSeats returns matched in request order with the committed status.
// Every requested id must have come back from the store verbatim; a row
// returned for a different spelling of the id fails the booking.
func orderSeats(ids []string, matched []model.Seat) ([]model.Seat, error) {
	byID := make(map[string]model.Seat, len(matched))
	for _, m := range matched {
		byID[m.ID] = m
	}
	out := make([]model.Seat, 0, len(ids))
	for _, id := range ids {
		seat, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: store matched no seat with id %q", ErrSeatsUnavailable, id)
		}
		seat.Status = model.SeatUnavailable
		out = append(out, seat)
	}
	return out, nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
