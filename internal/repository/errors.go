// Package repository implements persistence for seats, tickets and bookings
// on top of MySQL.  The sentinel values below let the service and handler
// layers tell failure scenarios apart without inspecting driver errors.
package repository

import "errors"

// ErrBookingNotFound is returned when no booking exists for a ticket id.
// Handlers translate it into an HTTP 404 response.
var ErrBookingNotFound = errors.New("booking not found")

// ErrDuplicateTicket is returned when a booking is written twice for the
// same ticket id.  Ticket ids come from an auto-increment column, so seeing
// it means the tickets table was tampered with.
var ErrDuplicateTicket = errors.New("duplicate ticket id")
