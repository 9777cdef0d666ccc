package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/diceroller/internal/roller"
)

// ErrRollExists is returned when a roll with the same ID was already recorded.
var ErrRollExists = errors.New("roll already recorded")

// maxRecent caps the number of rows returned by Recent.
const maxRecent = 100

var _ roller.Recorder = (*RollRepository)(nil)

// RollRepository persists roll history.
type RollRepository struct {
	db *pgxpool.Pool
}

// NewRollRepository creates a RollRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewRollRepository(db *pgxpool.Pool) *RollRepository {
	return &RollRepository{db: db}
}

// Record inserts one roll record.
//
// Precondition: rec.ID must be set.
// Postcondition: Returns ErrRollExists when rec.ID is already stored.
func (r *RollRepository) Record(ctx context.Context, rec roller.Record) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO rolls (id, frontend, user_id, channel_id, request, roll_type, total, line, failed, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.Frontend, rec.UserID, rec.ChannelID, rec.Request,
		rec.RollType, rec.Total, rec.Line, rec.Failed, rec.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrRollExists
		}
		return fmt.Errorf("inserting roll: %w", err)
	}
	return nil
}

// Recent returns up to limit of userID's most recent rolls, newest first.
// limit is clamped to [1, 100].
func (r *RollRepository) Recent(ctx context.Context, userID string, limit int) ([]roller.Record, error) {
	limit = min(max(limit, 1), maxRecent)

	rows, err := r.db.Query(ctx, `
		SELECT id, frontend, user_id, channel_id, request, roll_type, total, line, failed, created_at
		FROM rolls
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying rolls: %w", err)
	}
	defer rows.Close()

	records := make([]roller.Record, 0, limit)
	for rows.Next() {
		var rec roller.Record
		if err := rows.Scan(
			&rec.ID, &rec.Frontend, &rec.UserID, &rec.ChannelID, &rec.Request,
			&rec.RollType, &rec.Total, &rec.Line, &rec.Failed, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning roll: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func isDuplicateKeyError(err error) bool {
	// pgx wraps PostgreSQL errors; check for SQLSTATE 23505 (unique_violation)
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
