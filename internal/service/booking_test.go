package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seatwise/internal/clock"
	"github.com/iliyamo/seatwise/internal/model"
	"github.com/iliyamo/seatwise/internal/repository"
)

var bookedAt = time.Date(2024, 5, 1, 18, 30, 0, 0, time.UTC)

func newBookingFixture(opts ...BookingOption) (*BookingService, *memStore) {
	store := newMemStore(
		model.Seat{ID: "A1-A1", Status: model.SeatAvailable, Price: 3500},
		model.Seat{ID: "A1-A2", Status: model.SeatUnavailable, Price: 3200},
		model.Seat{ID: "A1-A3", Status: model.SeatAvailable, Price: 3100},
		model.Seat{ID: "B2-C4", Status: model.SeatAvailable, Price: 3999},
	)
	opts = append([]BookingOption{WithClock(clock.NewFixed(bookedAt))}, opts...)
	return NewBookingService(store, store, store, store, opts...), store
}

func TestBookScenario(t *testing.T) {
	svc, store := newBookingFixture()
	ctx := context.Background()

	b, err := svc.Book(ctx, []string{"A1-A1"})
	require.NoError(t, err)
	assert.NotEmpty(t, b.TicketID)
	assert.Equal(t, int64(3500), b.Amount)
	assert.Equal(t, bookedAt, b.BookedAt)
	require.Len(t, b.Seats, 1)
	assert.Equal(t, model.SeatUnavailable, b.Seats[0].Status)
	assert.Equal(t, model.SeatUnavailable, store.seat("A1-A1").Status)

	_, err = svc.Book(ctx, []string{"A1-A2"})
	assert.ErrorIs(t, err, ErrSeatsUnavailable)
	assert.Equal(t, model.SeatUnavailable, store.seat("A1-A2").Status)

	_, err = svc.Book(ctx, []string{"A1-A1", "A1-A2"})
	assert.ErrorIs(t, err, ErrSeatsUnavailable)
	assert.Equal(t, 1, store.bookingCount())
}

func TestBookSumsPricesInRequestOrder(t *testing.T) {
	svc, _ := newBookingFixture()

	b, err := svc.Book(context.Background(), []string{"B2-C4", "A1-A3", "A1-A1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"B2-C4", "A1-A3", "A1-A1"}, b.SeatIDs())
	assert.Equal(t, int64(3999+3100+3500), b.Amount)

	stored, err := svc.Get(context.Background(), b.TicketID)
	require.NoError(t, err)
	assert.Equal(t, b.Amount, stored.Amount)
	assert.Equal(t, b.SeatIDs(), stored.SeatIDs())
}

func TestBookMixedSetLeavesStateUnchanged(t *testing.T) {
	svc, store := newBookingFixture()

	_, err := svc.Book(context.Background(), []string{"A1-A3", "A1-A2", "B2-C4"})
	require.ErrorIs(t, err, ErrSeatsUnavailable)
	assert.Equal(t, model.SeatAvailable, store.seat("A1-A3").Status)
	assert.Equal(t, model.SeatAvailable, store.seat("B2-C4").Status)
	assert.Zero(t, store.bookingCount())
}

func TestBookUnknownAndDuplicateIDs(t *testing.T) {
	svc, store := newBookingFixture()

	_, err := svc.Book(context.Background(), []string{"Z9-Z99"})
	assert.ErrorIs(t, err, ErrSeatsUnavailable)

	_, err = svc.Book(context.Background(), []string{"A1-A1", "A1-A1"})
	assert.ErrorIs(t, err, ErrSeatsUnavailable)
	assert.Equal(t, model.SeatAvailable, store.seat("A1-A1").Status)
}

func TestBookValidation(t *testing.T) {
	svc, _ := newBookingFixture()

	for _, ids := range [][]string{nil, {}, {"A1A1"}, {"A1-A1", ""}, {"A1-10"}} {
		_, err := svc.Book(context.Background(), ids)
		assert.ErrorIs(t, err, ErrInvalidSeatIDs, "ids=%v", ids)
	}
}

func TestBookStoreFailureRollsBack(t *testing.T) {
	svc, store := newBookingFixture()
	store.failCreate = errStoreDown

	_, err := svc.Book(context.Background(), []string{"A1-A1"})
	require.ErrorIs(t, err, errStoreDown)
	assert.False(t, errors.Is(err, ErrSeatsUnavailable))
	assert.Equal(t, model.SeatAvailable, store.seat("A1-A1").Status)
}

func TestBookRoundTripListing(t *testing.T) {
	svc, store := newBookingFixture()
	inv := NewInventoryService(store, model.DefaultLayout(), testSeed)

	_, err := svc.Book(context.Background(), []string{"A1-A3", "B2-C4"})
	require.NoError(t, err)

	got, err := inv.List(context.Background())
	require.NoError(t, err)
	status := map[string]model.SeatStatus{}
	for _, s := range got.Seats {
		status[s.ID] = s.Status
	}
	assert.Equal(t, model.SeatUnavailable, status["A1-A3"])
	assert.Equal(t, model.SeatUnavailable, status["B2-C4"])
	assert.Equal(t, model.SeatAvailable, status["A1-A1"])
}

// memStore takes no row locks, so only the conditional update keeps the
// overlapping callers from committing the shared seat twice.
func TestBookConcurrentOverlapHasOneWinner(t *testing.T) {
	svc, store := newBookingFixture()

	const callers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids := []string{"A1-A1", "A1-A3"}
			if i%2 == 1 {
				ids = []string{"A1-A3", "B2-C4"}
			}
			_, err := svc.Book(context.Background(), ids)
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrSeatsUnavailable)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, store.bookingCount())
}

func TestBookSideEffects(t *testing.T) {
	pub := &recordingPublisher{}
	invalidated := 0
	svc, _ := newBookingFixture(
		WithPublisher(pub),
		WithSeatCache(SeatCacheFunc(func(context.Context) error {
			invalidated++
			return errors.New("redis down")
		})),
	)

	b, err := svc.Book(context.Background(), []string{"A1-A1", "A1-A3"})
	require.NoError(t, err)
	assert.Equal(t, 1, invalidated)
	require.Len(t, pub.events, 1)
	assert.Equal(t, b.TicketID, pub.events[0].TicketID)
	assert.Equal(t, []string{"A1-A1", "A1-A3"}, pub.events[0].Seats)
	assert.Equal(t, int64(6600), pub.events[0].Amount)
	assert.Equal(t, "2024-05-01T18:30:00Z", pub.events[0].BookedAt)

	_, err = svc.Book(context.Background(), []string{"A1-A1"})
	require.ErrorIs(t, err, ErrSeatsUnavailable)
	assert.Len(t, pub.events, 1)
	assert.Equal(t, 1, invalidated)
}

func TestGetUnknownTicket(t *testing.T) {
	svc, _ := newBookingFixture()
	_, err := svc.Get(context.Background(), "42")
	assert.ErrorIs(t, err, repository.ErrBookingNotFound)
}

func TestTicketPasses(t *testing.T) {
	svc, _ := newBookingFixture(WithClock(clock.NewSystem()), WithTicketPasses("s3cret", time.Hour))
	ctx := context.Background()

	b, err := svc.Book(ctx, []string{"B2-C4"})
	require.NoError(t, err)

	pass, err := svc.IssuePass(b)
	require.NoError(t, err)

	got, err := svc.VerifyPass(ctx, pass)
	require.NoError(t, err)
	assert.Equal(t, b.TicketID, got.TicketID)

	_, err = svc.VerifyPass(ctx, pass+"x")
	assert.ErrorIs(t, err, ErrInvalidPass)

	other, _ := newBookingFixture(WithTicketPasses("other", time.Hour))
	_, err = other.VerifyPass(ctx, pass)
	assert.ErrorIs(t, err, ErrInvalidPass)
}

func TestTicketPassesDisabled(t *testing.T) {
	svc, _ := newBookingFixture()
	_, err := svc.IssuePass(&model.Booking{TicketID: "1"})
	assert.ErrorIs(t, err, ErrPassesDisabled)
	_, err = svc.VerifyPass(context.Background(), "x")
	assert.ErrorIs(t, err, ErrPassesDisabled)
}

func TestBookLostConditionalUpdateRollsBack(t *testing.T) {
	svc, store := newBookingFixture()
	store.shortFlip = true

	_, err := svc.Book(context.Background(), []string{"A1-A1", "A1-A3"})
	require.ErrorIs(t, err, ErrSeatsUnavailable)
	assert.Equal(t, model.SeatAvailable, store.seat("A1-A1").Status)
	assert.Equal(t, model.SeatAvailable, store.seat("A1-A3").Status)
	assert.Zero(t, store.bookingCount())
}

func TestBookRejectsIDMatchedByDifferentCase(t *testing.T) {
	svc, store := newBookingFixture()
	store.foldCase = true

	b, err := svc.Book(context.Background(), []string{"a1-a1"})
	require.ErrorIs(t, err, ErrSeatsUnavailable)
	assert.Nil(t, b)
	assert.Equal(t, model.SeatAvailable, store.seat("A1-A1").Status)
	assert.Zero(t, store.bookingCount())
}
