package utils // package utils provides helpers for signing and checking ticket passes

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// passIssuer is written to and required in the iss claim.
const passIssuer = "seatwise"

// TicketClaims is the content of a ticket pass.  The pass lets a gate check
// a ticket offline: the signature proves the ticket id, seat list and
// amount were issued by this service.
type TicketClaims struct {
	TicketID string   `json:"tid"`
	Seats    []string `json:"seats"`
	Amount   int64    `json:"amount"`
	jwt.RegisteredClaims
}

// NewTicketPass builds and signs an HS256 JWT for a booking.  The subject is
// the ticket id; exp is now+ttl.
func NewTicketPass(secret, ticketID string, seats []string, amount int64, now time.Time, ttl time.Duration) (string, error) {
	claims := TicketClaims{
		TicketID: ticketID,
		Seats:    seats,
		Amount:   amount,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    passIssuer,
			Subject:   ticketID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign ticket pass: %w", err)
	}
	return signed, nil
}

// ParseTicketPass verifies the signature, algorithm, issuer and expiry of a
// pass and returns its claims.
func ParseTicketPass(secret, raw string) (*TicketClaims, error) {
	claims := &TicketClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		// Reject anything but HMAC so a token cannot pick its own algorithm.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(passIssuer), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("ticket pass is not valid")
	}
	if claims.TicketID == "" || claims.TicketID != claims.Subject {
		return nil, errors.New("ticket pass subject mismatch")
	}
	return claims, nil
}
