package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openacre/land-exchange-backend/internal/domain/errors"
	"github.com/openacre/land-exchange-backend/internal/domain/parcel"
	"github.com/openacre/land-exchange-backend/internal/domain/values"
)

// ParcelRepository stores parcels and serves the accepted-boundary
// corpus used by the overlap detector and the polygon fraud checker.
type ParcelRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewParcelRepository creates a parcel repository.
func NewParcelRepository(pool *pgxpool.Pool, logger *zap.Logger) *ParcelRepository {
	return &ParcelRepository{pool: pool, logger: logger}
}

// Create inserts a new parcel.
func (r *ParcelRepository) Create(ctx context.Context, p *parcel.Parcel) error {
	boundary, err := json.Marshal(p.Boundary)
	if err != nil {
		return errors.NewInternalError("failed to encode boundary").WithCause(err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO parcels (
			id, seller_id, title, property_type, region, price_amount,
			price_currency, boundary, boundary_version, status,
			block_reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.ID, p.SellerID, p.Title, p.PropertyType, p.Region,
		p.Price.Amount(), p.Price.Currency(), boundary, p.BoundaryVersion,
		p.Status, nullable(p.BlockReason), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return errors.NewInternalError("failed to create parcel").WithCause(err)
	}
	return nil
}

// GetByID loads one parcel.
func (r *ParcelRepository) GetByID(ctx context.Context, id uuid.UUID) (*parcel.Parcel, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, seller_id, title, property_type, region, price_amount::text,
		       price_currency, boundary, boundary_version, status,
		       COALESCE(block_reason, ''), created_at, updated_at
		FROM parcels
		WHERE id = $1 AND deleted_at IS NULL`,
		id,
	)
	return scanParcel(row)
}

// Update persists a parcel's mutable fields, including its status
// transition and any boundary revision.
func (r *ParcelRepository) Update(ctx context.Context, p *parcel.Parcel) error {
	boundary, err := json.Marshal(p.Boundary)
	if err != nil {
		return errors.NewInternalError("failed to encode boundary").WithCause(err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE parcels SET
			title = $2, property_type = $3, region = $4, price_amount = $5,
			price_currency = $6, boundary = $7, boundary_version = $8,
			status = $9, block_reason = $10, updated_at = $11
		WHERE id = $1 AND deleted_at IS NULL`,
		p.ID, p.Title, p.PropertyType, p.Region, p.Price.Amount(),
		p.Price.Currency(), boundary, p.BoundaryVersion, p.Status,
		nullable(p.BlockReason), p.UpdatedAt,
	)
	if err != nil {
		return errors.NewInternalError("failed to update parcel").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrParcelNotFound
	}
	return nil
}

// ListAcceptedBoundaries returns the id, title and boundary of every
// accepted parcel, optionally excluding one (the candidate's own row
// during resubmission). Rows whose stored boundary no longer decodes
// are logged and skipped rather than sinking the whole corpus.
func (r *ParcelRepository) ListAcceptedBoundaries(ctx context.Context, excludeParcelID *uuid.UUID) ([]parcel.CorpusEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, boundary
		FROM parcels
		WHERE status = $1 AND deleted_at IS NULL
		  AND ($2::uuid IS NULL OR id != $2)
		ORDER BY created_at`,
		parcel.StatusAccepted, excludeParcelID,
	)
	if err != nil {
		return nil, errors.NewInternalError("failed to query accepted parcels").WithCause(err)
	}
	defer rows.Close()

	var entries []parcel.CorpusEntry
	for rows.Next() {
		var entry parcel.CorpusEntry
		var boundary []byte
		if err := rows.Scan(&entry.ID, &entry.Title, &boundary); err != nil {
			return nil, errors.NewInternalError("failed to scan corpus row").WithCause(err)
		}
		if err := json.Unmarshal(boundary, &entry.Boundary); err != nil {
			r.logger.Warn("skipping corpus row with undecodable boundary",
				zap.String("parcel_id", entry.ID.String()), zap.Error(err))
			continue
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("failed to read corpus rows").WithCause(err)
	}
	return entries, nil
}

// CountListingsSince counts parcels a seller created after the given
// time. Backs the listing-velocity fraud check when the Redis tracker
// is unavailable.
func (r *ParcelRepository) CountListingsSince(ctx context.Context, sellerID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM parcels
		WHERE seller_id = $1 AND created_at >= $2 AND deleted_at IS NULL`,
		sellerID, since,
	).Scan(&count)
	if err != nil {
		return 0, errors.NewInternalError("failed to count recent listings").WithCause(err)
	}
	return count, nil
}

func scanParcel(row pgx.Row) (*parcel.Parcel, error) {
	var p parcel.Parcel
	var boundary []byte
	var priceAmount, priceCurrency string

	err := row.Scan(
		&p.ID, &p.SellerID, &p.Title, &p.PropertyType, &p.Region,
		&priceAmount, &priceCurrency, &boundary, &p.BoundaryVersion,
		&p.Status, &p.BlockReason, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.ErrParcelNotFound
		}
		return nil, errors.NewInternalError("failed to scan parcel").WithCause(err)
	}

	if err := json.Unmarshal(boundary, &p.Boundary); err != nil {
		return nil, errors.NewInternalError("failed to decode stored boundary").WithCause(err)
	}
	amount, err := decimal.NewFromString(priceAmount)
	if err != nil {
		return nil, errors.NewInternalError("failed to decode stored price").WithCause(err)
	}
	p.Price, err = values.NewPrice(amount, priceCurrency)
	if err != nil {
		return nil, errors.NewInternalError("failed to decode stored price").WithCause(err)
	}
	return &p, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
