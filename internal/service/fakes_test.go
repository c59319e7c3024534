package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/seatwise/internal/model"
	"github.com/iliyamo/seatwise/internal/queue"
	"github.com/iliyamo/seatwise/internal/repository"
)

// memStore keeps seats, tickets and bookings in memory.  Every call locks
// the store only for its own duration, so transactions interleave freely.
// FindAvailableForUpdate takes no row locks: the conditional update in
// MarkUnavailable is the only thing standing between two overlapping
// bookings.  A failed transaction is undone from its log.
type memStore struct {
	mu       sync.Mutex
	order    []string
	seats    map[string]model.Seat
	tickets  int
	bookings map[string]model.Booking

	// foldCase matches ids case-insensitively, like a *_ci collation.
	foldCase   bool
	shortFlip  bool
	failCreate error
}

type undoKey struct{}

type undoLog struct {
	seats    []model.Seat
	bookings []string
}

func newMemStore(seats ...model.Seat) *memStore {
	s := &memStore{seats: map[string]model.Seat{}, bookings: map[string]model.Booking{}}
	for _, seat := range seats {
		s.order = append(s.order, seat.ID)
		s.seats[seat.ID] = seat
	}
	return s
}

func (s *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(undoKey{}).(*undoLog); ok {
		return fn(ctx)
	}
	undo := &undoLog{}
	if err := fn(context.WithValue(ctx, undoKey{}, undo)); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i := len(undo.seats) - 1; i >= 0; i-- {
			s.seats[undo.seats[i].ID] = undo.seats[i]
		}
		for _, id := range undo.bookings {
			delete(s.bookings, id)
		}
		return err
	}
	return nil
}

func undoFrom(ctx context.Context) *undoLog {
	if u, ok := ctx.Value(undoKey{}).(*undoLog); ok {
		return u
	}
	return &undoLog{}
}

// lookup must be called with mu held.
func (s *memStore) lookup(id string) (model.Seat, bool) {
	if seat, ok := s.seats[id]; ok || !s.foldCase {
		return seat, ok
	}
	for _, key := range s.order {
		if strings.EqualFold(key, id) {
			return s.seats[key], true
		}
	}
	return model.Seat{}, false
}

func (s *memStore) FindAvailableForUpdate(_ context.Context, ids []string) ([]model.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Seat
	seen := map[string]bool{}
	for _, id := range ids {
		seat, ok := s.lookup(id)
		if !ok || seen[seat.ID] || seat.Status != model.SeatAvailable {
			continue
		}
		seen[seat.ID] = true
		out = append(out, seat)
	}
	return out, nil
}

func (s *memStore) MarkUnavailable(ctx context.Context, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	undo := undoFrom(ctx)
	var n int64
	for _, id := range ids {
		seat, ok := s.lookup(id)
		if !ok || seat.Status != model.SeatAvailable {
			continue
		}
		undo.seats = append(undo.seats, seat)
		seat.Status = model.SeatUnavailable
		s.seats[seat.ID] = seat
		n++
	}
	if s.shortFlip && n > 0 {
		n--
	}
	return n, nil
}

func (s *memStore) Next(_ context.Context, _ time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets++
	return strconv.Itoa(s.tickets), nil
}

func (s *memStore) Create(ctx context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		return s.failCreate
	}
	if _, ok := s.bookings[b.TicketID]; ok {
		return repository.ErrDuplicateTicket
	}
	s.bookings[b.TicketID] = *b
	undo := undoFrom(ctx)
	undo.bookings = append(undo.bookings, b.TicketID)
	return nil
}

func (s *memStore) GetByTicketID(_ context.Context, ticketID string) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[ticketID]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	return &b, nil
}

func (s *memStore) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seats), nil
}

func (s *memStore) InsertIgnore(_ context.Context, seats []model.Seat) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, seat := range seats {
		if _, ok := s.seats[seat.ID]; ok {
			continue
		}
		s.order = append(s.order, seat.ID)
		s.seats[seat.ID] = seat
		n++
	}
	return n, nil
}

func (s *memStore) List(context.Context) ([]model.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Seat, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.seats[id])
	}
	return out, nil
}

func (s *memStore) seat(id string) model.Seat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seats[id]
}

func (s *memStore) bookingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings)
}

type errSeatStore struct{ err error }

func (e errSeatStore) Count(context.Context) (int, error) { return 0, e.err }
func (e errSeatStore) InsertIgnore(context.Context, []model.Seat) (int64, error) {
	return 0, e.err
}
func (e errSeatStore) List(context.Context) ([]model.Seat, error) { return nil, e.err }

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.BookingConfirmedEvent
	err    error
}

func (p *recordingPublisher) PublishBookingConfirmed(_ context.Context, ev queue.BookingConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

var errStoreDown = errors.New("store down")
