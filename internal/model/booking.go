package model

import "time"

// Booking is the immutable record written once per successful booking.
// Seats holds a copy of the seat rows as they were committed, so later
// changes to the inventory never alter a past booking.
type Booking struct {
	TicketID string    `json:"ticketId"`
	Seats    []Seat    `json:"seats"`
	Amount   int64     `json:"amount"`
	BookedAt time.Time `json:"bookedAt"`
}

// SeatIDs returns the ids of the booked seats in booking order.
func (b Booking) SeatIDs() []string {
	ids := make([]string, 0, len(b.Seats))
	for _, s := range b.Seats {
		ids = append(ids, s.ID)
	}
	return ids
}

// SumPrices adds up the price of every seat.
func SumPrices(seats []Seat) int64 {
	var total int64
	for _, s := range seats {
		total += s.Price
	}
	return total
}
