package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
)

// TicketRepo hands out ticket identifiers.  Each call appends a row to the
// tickets table and returns its auto-increment id, so ids are unique and
// increase over time.
type TicketRepo struct {
	db *sqlx.DB
}

// NewTicketRepo returns a TicketRepo bound to the given database.
func NewTicketRepo(db *sqlx.DB) *TicketRepo { return &TicketRepo{db: db} }

// Next issues a new ticket id.
func (r *TicketRepo) Next(ctx context.Context, at time.Time) (string, error) {
	res, err := querier(ctx, r.db).ExecContext(ctx, `INSERT INTO tickets (created_at) VALUES (?)`, at)
	if err != nil {
		return "", fmt.Errorf("issue ticket: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("issue ticket: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}
