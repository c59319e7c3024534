package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SeatStatus is the availability of a seat.
type SeatStatus string

const (
	SeatAvailable   SeatStatus = "available"
	SeatUnavailable SeatStatus = "unavailable"
	// SeatSelected only exists in the browser while a user builds a
	// selection.  It is never written to the store.
	SeatSelected SeatStatus = "selected"
)

// Persisted reports whether the status may be stored.
func (s SeatStatus) Persisted() bool {
	return s == SeatAvailable || s == SeatUnavailable
}

// Seat is one bookable unit of the inventory.  The ID has the form
// {stand}{level}-{row}{column}, e.g. "A1-B7".
type Seat struct {
	ID     string     `json:"id" db:"seat_id"`
	Status SeatStatus `json:"status" db:"status"`
	Price  int64      `json:"price" db:"price"`
}

// ErrInvalidSeatID is returned by ParseSeatID for malformed identifiers.
var ErrInvalidSeatID = errors.New("invalid seat id")

// SeatRef is the decomposed form of a seat id.  Stand, level and row are
// the raw labels; they are split on the first digit (level) and the last
// run of digits (column), so labels must follow that convention.
type SeatRef struct {
	Block  string // stand + level, e.g. "A1"
	Row    string
	Column int
}

// SeatID builds the canonical identifier of a seat.
func SeatID(stand, level, row string, column int) string {
	return stand + level + "-" + row + strconv.Itoa(column)
}

// ParseSeatID checks the {block}-{row}{column} shape of an identifier and
// splits it.  It does not check the id against a layout.
func ParseSeatID(id string) (SeatRef, error) {
	block, rest, ok := strings.Cut(id, "-")
	if !ok || block == "" || rest == "" || strings.Contains(rest, "-") {
		return SeatRef{}, fmt.Errorf("%w: %q", ErrInvalidSeatID, id)
	}
	i := len(rest)
	for i > 0 && rest[i-1] >= '0' && rest[i-1] <= '9' {
		i--
	}
	if i == 0 || i == len(rest) {
		return SeatRef{}, fmt.Errorf("%w: %q", ErrInvalidSeatID, id)
	}
	col, err := strconv.Atoi(rest[i:])
	if err != nil || col <= 0 {
		return SeatRef{}, fmt.Errorf("%w: %q", ErrInvalidSeatID, id)
	}
	return SeatRef{Block: block, Row: rest[:i], Column: col}, nil
}
