package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/openacre/land-exchange-backend/internal/domain/errors"
	"github.com/openacre/land-exchange-backend/internal/domain/signal"
)

// SignalRepository persists fraud signals. The table is append-only;
// there is deliberately no update or delete path.
type SignalRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewSignalRepository creates a signal repository.
func NewSignalRepository(pool *pgxpool.Pool, logger *zap.Logger) *SignalRepository {
	return &SignalRepository{pool: pool, logger: logger}
}

// SaveBatch inserts a checker's signals in one round trip.
func (r *SignalRepository) SaveBatch(ctx context.Context, signals []*signal.Signal) error {
	if len(signals) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, sig := range signals {
		batch.Queue(`
			INSERT INTO fraud_signals (
				id, listing_id, user_id, signal_type, signal_score,
				details, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			sig.ID, sig.ListingID, sig.UserID, sig.Type, sig.Score,
			sig.Details, sig.CreatedAt,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range signals {
		if _, err := results.Exec(); err != nil {
			return errors.NewInternalError("failed to insert fraud signal").WithCause(err)
		}
	}
	return nil
}

// CountByUser counts all signals ever recorded for a user. Backs the
// repeat-offender check.
func (r *SignalRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM fraud_signals WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, errors.NewInternalError("failed to count user signals").WithCause(err)
	}
	return count, nil
}

// ListByUserSince returns a user's signals recorded after the given
// time, newest first. Backs the configurable dedup window.
func (r *SignalRepository) ListByUserSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*signal.Signal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, listing_id, user_id, signal_type, signal_score,
		       details, created_at
		FROM fraud_signals
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at DESC`,
		userID, since,
	)
	if err != nil {
		return nil, errors.NewInternalError("failed to query user signals").WithCause(err)
	}
	defer rows.Close()

	var signals []*signal.Signal
	for rows.Next() {
		var sig signal.Signal
		if err := rows.Scan(
			&sig.ID, &sig.ListingID, &sig.UserID, &sig.Type,
			&sig.Score, &sig.Details, &sig.CreatedAt,
		); err != nil {
			return nil, errors.NewInternalError("failed to scan signal row").WithCause(err)
		}
		signals = append(signals, &sig)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("failed to read signal rows").WithCause(err)
	}
	return signals, nil
}

// ListByListing returns all signals recorded against one listing.
func (r *SignalRepository) ListByListing(ctx context.Context, listingID uuid.UUID) ([]*signal.Signal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, listing_id, user_id, signal_type, signal_score,
		       details, created_at
		FROM fraud_signals
		WHERE listing_id = $1
		ORDER BY created_at DESC`,
		listingID,
	)
	if err != nil {
		return nil, errors.NewInternalError("failed to query listing signals").WithCause(err)
	}
	defer rows.Close()

	var signals []*signal.Signal
	for rows.Next() {
		var sig signal.Signal
		if err := rows.Scan(
			&sig.ID, &sig.ListingID, &sig.UserID, &sig.Type,
			&sig.Score, &sig.Details, &sig.CreatedAt,
		); err != nil {
			return nil, errors.NewInternalError("failed to scan signal row").WithCause(err)
		}
		signals = append(signals, &sig)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("failed to read signal rows").WithCause(err)
	}
	return signals, nil
}
