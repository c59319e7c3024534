package service

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/iliyamo/seatwise/internal/config"
	"github.com/iliyamo/seatwise/internal/log"
	"github.com/iliyamo/seatwise/internal/metrics"
	"github.com/iliyamo/seatwise/internal/model"
)

// SeatStore is the persistence needed by InventoryService.
type SeatStore interface {
	Count(ctx context.Context) (int, error)
	InsertIgnore(ctx context.Context, seats []model.Seat) (int64, error)
	List(ctx context.Context) ([]model.Seat, error)
}

// Inventory is the full seat list together with the grid it was built from.
type Inventory struct {
	Seats  []model.Seat
	Layout model.Layout
}

// InventoryService owns the seat inventory: it seeds it on first access and
// lists it.
type InventoryService struct {
	seats  SeatStore
	layout model.Layout
	seed   config.SeedConfig

	mu  sync.Mutex // guards rnd
	rnd *rand.Rand
}

type InventoryOption func(*InventoryService)

// WithRand replaces the random source used for seeding.
func WithRand(r *rand.Rand) InventoryOption {
	return func(s *InventoryService) {
		if r != nil {
			s.rnd = r
		}
	}
}

func NewInventoryService(seats SeatStore, layout model.Layout, seed config.SeedConfig, opts ...InventoryOption) *InventoryService {
	svc := &InventoryService{
		seats:  seats,
		layout: layout,
		seed:   seed,
		rnd:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Layout returns the configured venue grid.
func (s *InventoryService) Layout() model.Layout {
	return s.layout
}

// List returns every seat, seeding the inventory first when it is empty.
// Seat order is whatever the store returns.
func (s *InventoryService) List(ctx context.Context) (Inventory, error) {
	n, err := s.seats.Count(ctx)
	if err != nil {
		return Inventory{}, err
	}
	if n == 0 {
		if _, err := s.Seed(ctx); err != nil {
			return Inventory{}, err
		}
	}
	seats, err := s.seats.List(ctx)
	if err != nil {
		return Inventory{}, err
	}
	return Inventory{Seats: seats, Layout: s.layout}, nil
}

// Seed generates one seat per layout position and inserts them, skipping
// ids that already exist.  Running it concurrently or repeatedly never
// grows the inventory beyond the layout size.
func (s *InventoryService) Seed(ctx context.Context) (int, error) {
	seats := s.generate()
	inserted, err := s.seats.InsertIgnore(ctx, seats)
	if err != nil {
		return int(inserted), err
	}
	metrics.SeatsSeeded.Add(float64(inserted))
	log.FromContext(ctx).WithField("inserted", inserted).WithField("generated", len(seats)).Info("Seeded seat inventory")
	return int(inserted), nil
}

func (s *InventoryService) generate() []model.Seat {
	s.mu.Lock()
	defer s.mu.Unlock()

	seats := make([]model.Seat, 0, s.layout.Size())
	span := s.seed.PriceMax - s.seed.PriceMin
	s.layout.Each(func(id string) {
		status := model.SeatAvailable
		if s.rnd.Float64() < s.seed.UnavailableRatio {
			status = model.SeatUnavailable
		}
		price := s.seed.PriceMin
		if span > 0 {
			price += s.rnd.Int64N(span)
		}
		seats = append(seats, model.Seat{ID: id, Status: status, Price: price})
	})
	return seats
}
