package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema lists the statements that create the three collections.  seats is
// keyed by the seat id; tickets only hands out ids; bookings is append-only
// and keeps the booked seats as a JSON snapshot.
//
// seat_id uses a binary collation: ids are matched byte for byte, so
// "a1-a1" never finds the row "A1-A1".
var schema = []string{
	`CREATE TABLE IF NOT EXISTS seats (
		seat_id    VARCHAR(32) CHARACTER SET ascii COLLATE ascii_bin NOT NULL,
		status     ENUM('available','unavailable') NOT NULL DEFAULT 'available',
		price      INT UNSIGNED NOT NULL,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
		PRIMARY KEY (seat_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		created_at DATETIME(6) NOT NULL,
		PRIMARY KEY (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS bookings (
		ticket_id VARCHAR(64) NOT NULL,
		seats     JSON NOT NULL,
		amount    BIGINT NOT NULL,
		booked_at DATETIME(6) NOT NULL,
		PRIMARY KEY (ticket_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates missing tables.  It is safe to run on every start.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
