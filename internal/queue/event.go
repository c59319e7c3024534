// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingConfirmedQueue is the durable queue carrying BookingConfirmedEvent.
const BookingConfirmedQueue = "booking.confirmed"

// BookingConfirmedEvent is published after a booking commits.  It carries
// enough for downstream consumers to log or notify without reading the
// database.
type BookingConfirmedEvent struct {
	TicketID string   `json:"ticket_id"`
	Seats    []string `json:"seats"`
	Amount   int64    `json:"amount"`
	BookedAt string   `json:"booked_at"`
}
