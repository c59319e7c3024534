package service

import "errors"

var (
	// ErrInvalidSeatIDs rejects an empty or malformed seat id list.
	ErrInvalidSeatIDs = errors.New("invalid seatIds")
	// ErrSeatsUnavailable means at least one requested seat is not
	// bookable.  No seat was changed.
	ErrSeatsUnavailable = errors.New("some seats are not available")
	// ErrPassesDisabled is returned when no ticket pass secret is configured.
	ErrPassesDisabled = errors.New("ticket passes are disabled")
	// ErrInvalidPass covers passes that fail signature, expiry or content checks.
	ErrInvalidPass = errors.New("invalid ticket pass")
)
