package signal

import (
	"time"

	"github.com/google/uuid"

	"github.com/openacre/land-exchange-backend/internal/domain/errors"
)

// Type identifies the kind of fraud indicator a signal records.
type Type string

const (
	TypeSelfIntersectingPolygon   Type = "self_intersecting_polygon"
	TypeDuplicatePolygon          Type = "duplicate_polygon"
	TypeSimilarPolygon            Type = "similar_polygon"
	TypeMultipleAccountsSamePhone Type = "multiple_accounts_same_phone"
	TypeListingVelocity           Type = "listing_velocity"
	TypeRepeatOffender            Type = "repeat_offender"
	TypePriceAnomaly              Type = "price_anomaly"
)

// Severity weights per signal type. These are ranking weights for human
// review queues, not probabilities.
const (
	ScoreSelfIntersection   = 15
	ScoreExactDuplicate     = 20
	ScoreMajorOverlap       = 18 // >80% of candidate area
	ScoreSignificantOverlap = 12 // 20-80%
	ScoreMinorOverlap       = 5  // 5-20%
	ScoreDuplicatePhone     = 15
	ScoreListingVelocity    = 10
	ScoreRepeatOffender     = 12
)

// Signal is one persisted fraud indicator. Rows are append-only: the
// detection pipeline creates them and nothing in this subsystem ever
// updates or deletes them. Repeated detection of the same condition
// accumulates additional rows.
type Signal struct {
	ID        uuid.UUID  `json:"id"`
	ListingID *uuid.UUID `json:"listing_id,omitempty"`
	UserID    uuid.UUID  `json:"user_id"`
	Type      Type       `json:"signal_type"`
	Score     int        `json:"signal_score"`
	Details   string     `json:"details"`
	CreatedAt time.Time  `json:"created_at"`
}

// New creates a signal for the given user, optionally tied to a listing.
func New(userID uuid.UUID, listingID *uuid.UUID, signalType Type, score int, details string) (*Signal, error) {
	if userID == uuid.Nil {
		return nil, errors.NewValidationError("INVALID_USER_ID", "signal requires a user id")
	}
	if score <= 0 {
		return nil, errors.NewValidationError("INVALID_SIGNAL_SCORE", "signal score must be positive")
	}

	return &Signal{
		ID:        uuid.New(),
		ListingID: listingID,
		UserID:    userID,
		Type:      signalType,
		Score:     score,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Key returns a deduplication key identifying "the same finding": the
// same user, listing and signal type. Used only when a dedup window is
// configured; accumulation is the default behaviour.
func (s *Signal) Key() string {
	listing := ""
	if s.ListingID != nil {
		listing = s.ListingID.String()
	}
	return s.UserID.String() + "|" + listing + "|" + string(s.Type)
}
