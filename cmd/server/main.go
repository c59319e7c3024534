package main // entry point of the seat booking API

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/seatwise/internal/config"
	"github.com/iliyamo/seatwise/internal/database"
	"github.com/iliyamo/seatwise/internal/handler"
	"github.com/iliyamo/seatwise/internal/log"
	"github.com/iliyamo/seatwise/internal/middleware"
	"github.com/iliyamo/seatwise/internal/queue"
	"github.com/iliyamo/seatwise/internal/repository"
	"github.com/iliyamo/seatwise/internal/router"
	"github.com/iliyamo/seatwise/internal/service"
)

func main() {
	cfg := config.Load()
	log.Init(log.ParseLevel(cfg.LogLevel), cfg.Env)

	if err := run(cfg); err != nil {
		logrus.WithError(err).Fatal("server stopped")
	}
}

func run(cfg config.Config) error {
	if err := cfg.Layout.Validate(); err != nil {
		return err
	}
	if err := cfg.Seed.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	// Redis is optional: without it the cache and the rate limiter pass through.
	rdb := config.NewRedisClient(ctx)
	if rdb == nil {
		logrus.Warn("redis unavailable, response cache and rate limit disabled")
	} else {
		defer rdb.Close()
	}
	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb)

	seats := repository.NewSeatRepo(db)
	inventory := service.NewInventoryService(seats, cfg.Layout, cfg.Seed)

	opts := []service.BookingOption{
		service.WithSeatCache(service.SeatCacheFunc(func(ctx context.Context) error {
			return cache.Invalidate(ctx, router.SeatsPath)
		})),
	}
	if cfg.EventsEnabled {
		opts = append(opts, service.WithPublisher(queue.NewPublisher(cfg.RabbitURL)))
	}
	if cfg.TicketPassSecret != "" {
		opts = append(opts, service.WithTicketPasses(cfg.TicketPassSecret, cfg.TicketPassTTL))
	}
	bookings := service.NewBookingService(
		repository.NewTxManager(db), seats, repository.NewTicketRepo(db), repository.NewBookingRepo(db), opts...,
	)

	e := router.New(router.Deps{
		Seats:     &handler.SeatHandler{Inventory: inventory},
		Bookings:  &handler.BookingHandler{Bookings: bookings},
		Health:    &handler.HealthHandler{DB: db},
		Cache:     cache,
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		logrus.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	if cfg.ConsumerEnabled {
		g.Go(func() error {
			return queue.NewConsumer(cfg.RabbitURL, cfg.BookingLogDir).Run(gctx)
		})
	}
	return g.Wait()
}
