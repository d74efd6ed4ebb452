package fraud

import (
	"time"

	"github.com/google/uuid"

	"github.com/openacre/land-exchange-backend/internal/domain/geo"
	"github.com/openacre/land-exchange-backend/internal/domain/signal"
	"github.com/openacre/land-exchange-backend/internal/domain/values"
)

// Checker names as reported in summaries and logs.
const (
	CheckerPolygon = "polygon"
	CheckerAccount = "account"
	CheckerPrice   = "price"
)

// Config tunes the aggregator's account heuristics.
type Config struct {
	// VelocityWindow is the trailing window for the listing-velocity
	// check.
	VelocityWindow time.Duration
	// VelocityMaxListings is the most listings a user may create inside
	// the window before a signal fires.
	VelocityMaxListings int
	// RepeatOffenderThreshold is the number of prior signals that marks
	// a user as a repeat offender.
	RepeatOffenderThreshold int
	// DedupWindow suppresses a new signal when one with the same user,
	// listing and type was recorded within the window. Zero disables
	// deduplication and lets repeated findings accumulate.
	DedupWindow time.Duration
}

// DefaultConfig returns the standard aggregator tuning.
func DefaultConfig() Config {
	return Config{
		VelocityWindow:          24 * time.Hour,
		VelocityMaxListings:     5,
		RepeatOffenderThreshold: 3,
		DedupWindow:             0,
	}
}

// DetectionInput is everything the aggregator needs about one
// submission. The aggregator never loads the listing itself.
type DetectionInput struct {
	ListingID    *uuid.UUID
	UserID       uuid.UUID
	Boundary     geo.Polygon
	Price        values.Price
	Phone        values.PhoneNumber
	Region       string
	PropertyType string
}

// PriceCheckInput is the slice of DetectionInput the price checker
// needs, with the boundary already reduced to an area.
type PriceCheckInput struct {
	ListingID    *uuid.UUID
	UserID       uuid.UUID
	Price        values.Price
	AreaM2       float64
	Region       string
	PropertyType string
}

// CheckerResult is one checker's contribution to a detection run. A
// failed checker reports Failed with an empty signal list; its absence
// of findings is not a clean bill of health.
type CheckerResult struct {
	Checker string           `json:"checker"`
	Signals []*signal.Signal `json:"signals"`
	Failed  bool             `json:"failed"`
	Error   string           `json:"error,omitempty"`
}

// DetectionSummary is the outcome of one full detection run.
// TotalSignals counts findings; TotalScore sums their severity weights.
// The two answer different questions and both are reported.
type DetectionSummary struct {
	UserID       uuid.UUID       `json:"user_id"`
	ListingID    *uuid.UUID      `json:"listing_id,omitempty"`
	RanAt        time.Time       `json:"ran_at"`
	Checkers     []CheckerResult `json:"checkers"`
	TotalSignals int             `json:"total_signals"`
	TotalScore   int             `json:"total_score"`
}

// AllSignals returns every signal across all checkers.
func (s *DetectionSummary) AllSignals() []*signal.Signal {
	var out []*signal.Signal
	for _, c := range s.Checkers {
		out = append(out, c.Signals...)
	}
	return out
}
