package fraud

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/openacre/land-exchange-backend/internal/domain/parcel"
	"github.com/openacre/land-exchange-backend/internal/domain/signal"
	"github.com/openacre/land-exchange-backend/internal/domain/values"
)

// CorpusRepository loads accepted boundaries for the polygon checker.
type CorpusRepository interface {
	ListAcceptedBoundaries(ctx context.Context, excludeParcelID *uuid.UUID) ([]parcel.CorpusEntry, error)
}

// SignalRepository persists and queries fraud signals.
type SignalRepository interface {
	SaveBatch(ctx context.Context, signals []*signal.Signal) error
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
	ListByUserSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*signal.Signal, error)
}

// ProfileRepository answers the account checker's questions about
// seller profiles and their listing history.
type ProfileRepository interface {
	CountProfilesByPhone(ctx context.Context, phone values.PhoneNumber) (int, error)
	CountListingsSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
}

// VelocityTracker is a fast path for the listing-velocity check,
// typically Redis-backed. Optional: when absent or failing, the
// account checker falls back to ProfileRepository.
type VelocityTracker interface {
	RecordListing(ctx context.Context, userID uuid.UUID) error
	CountWithin(ctx context.Context, userID uuid.UUID, window time.Duration) (int, error)
}

// PriceAnomalyChecker compares an asking price against regional norms.
// It lives behind an interface because pricing data comes from a
// separate subsystem; a failure here never sinks the other checkers.
type PriceAnomalyChecker interface {
	CheckPrice(ctx context.Context, input PriceCheckInput) ([]*signal.Signal, error)
}
