package repository // repository defines data access for seats

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/seatwise/internal/model"
)

// seedBatchSize bounds the number of rows per INSERT statement.
const seedBatchSize = 500

// SeatRepo provides methods to work with seats in the database.
type SeatRepo struct {
	db *sqlx.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sqlx.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// Count returns the number of seats in the inventory.
func (r *SeatRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, querier(ctx, r.db), &n, `SELECT COUNT(*) FROM seats`); err != nil {
		return 0, fmt.Errorf("count seats: %w", err)
	}
	return n, nil
}

// InsertIgnore inserts seats in batches and skips rows whose seat_id already
// exists.  It returns the number of rows actually inserted, so concurrent
// seeders never produce more rows than the layout holds.
func (r *SeatRepo) InsertIgnore(ctx context.Context, seats []model.Seat) (int64, error) {
	q := querier(ctx, r.db)
	var inserted int64
	for start := 0; start < len(seats); start += seedBatchSize {
		end := min(start+seedBatchSize, len(seats))
		batch := seats[start:end]

		var sb strings.Builder
		sb.WriteString(`INSERT IGNORE INTO seats (seat_id, status, price) VALUES `)
		args := make([]interface{}, 0, len(batch)*3)
		for i, s := range batch {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString("(?, ?, ?)")
			args = append(args, s.ID, s.Status, s.Price)
		}
		res, err := q.ExecContext(ctx, sb.String(), args...)
		if err != nil {
			return inserted, fmt.Errorf("insert seats: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("insert seats: %w", err)
		}
		inserted += n
	}
	return inserted, nil
}

// List returns every seat in store order.
func (r *SeatRepo) List(ctx context.Context) ([]model.Seat, error) {
	seats := []model.Seat{}
	if err := sqlx.SelectContext(ctx, querier(ctx, r.db), &seats, `SELECT seat_id, status, price FROM seats`); err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	return seats, nil
}

// FindAvailableForUpdate returns the seats among ids that are still
// available and locks their rows until the surrounding transaction ends.
// Outside a transaction the lock is released as soon as the query returns.
func (r *SeatRepo) FindAvailableForUpdate(ctx context.Context, ids []string) ([]model.Seat, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := querier(ctx, r.db)
	query, args, err := sqlx.In(
		`SELECT seat_id, status, price FROM seats WHERE seat_id IN (?) AND status = ? FOR UPDATE`,
		ids, model.SeatAvailable,
	)
	if err != nil {
		return nil, fmt.Errorf("find available seats: %w", err)
	}
	var seats []model.Seat
	if err := sqlx.SelectContext(ctx, q, &seats, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("find available seats: %w", err)
	}
	return seats, nil
}

// MarkUnavailable flips the given seats to unavailable, but only those that
// are still available.  The affected row count tells the caller how many
// seats it actually won.
func (r *SeatRepo) MarkUnavailable(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q := querier(ctx, r.db)
	query, args, err := sqlx.In(
		`UPDATE seats SET status = ? WHERE seat_id IN (?) AND status = ?`,
		model.SeatUnavailable, ids, model.SeatAvailable,
	)
	if err != nil {
		return 0, fmt.Errorf("mark seats unavailable: %w", err)
	}
	res, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("mark seats unavailable: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark seats unavailable: %w", err)
	}
	return n, nil
}
