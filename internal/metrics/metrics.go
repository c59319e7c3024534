package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Booking outcomes used as the result label of BookingsTotal.
const (
	ResultSuccess     = "success"
	ResultUnavailable = "unavailable"
	ResultInvalid     = "invalid"
	ResultError       = "error"
)

var (
	// BookingsTotal counts booking attempts by outcome.
	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seatwise",
			Name:      "bookings_total",
			Help:      "The total number of booking attempts by result",
		},
		[]string{"result"},
	)

	// SeatsSeeded counts seat rows inserted by inventory seeding.
	SeatsSeeded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "seatwise",
		Name:      "seats_seeded_total",
		Help:      "The total number of seats inserted while seeding the inventory",
	})

	// BookingAmount sums the amount of every committed booking.
	BookingAmount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "seatwise",
		Name:      "booking_amount_total",
		Help:      "The total amount of committed bookings",
	})
)
