package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/openacre/land-exchange-backend/internal/domain/errors"
	"github.com/openacre/land-exchange-backend/internal/domain/values"
)

// ProfileRepository answers account-level questions for the fraud
// aggregator. Profile management itself belongs to another service;
// this repository only reads.
type ProfileRepository struct {
	pool    *pgxpool.Pool
	parcels *ParcelRepository
	logger  *zap.Logger
}

// NewProfileRepository creates a profile repository.
func NewProfileRepository(pool *pgxpool.Pool, parcels *ParcelRepository, logger *zap.Logger) *ProfileRepository {
	return &ProfileRepository{pool: pool, parcels: parcels, logger: logger}
}

// CountProfilesByPhone counts seller profiles registered with the same
// phone number. Numbers are stored normalized to E.164, so equality is
// a plain comparison.
func (r *ProfileRepository) CountProfilesByPhone(ctx context.Context, phone values.PhoneNumber) (int, error) {
	if phone.IsEmpty() {
		return 0, nil
	}
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM seller_profiles WHERE phone = $1 AND deleted_at IS NULL`,
		phone.String(),
	).Scan(&count)
	if err != nil {
		return 0, errors.NewInternalError("failed to count profiles by phone").WithCause(err)
	}
	return count, nil
}

// CountListingsSince delegates to the parcel repository.
func (r *ProfileRepository) CountListingsSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	return r.parcels.CountListingsSince(ctx, userID, since)
}
