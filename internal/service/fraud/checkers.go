package fraud

import (
	"context"
	"fmt"
	"time"

	"github.com/openacre/land-exchange-backend/internal/domain/errors"
	"github.com/openacre/land-exchange-backend/internal/domain/geo"
	"github.com/openacre/land-exchange-backend/internal/domain/signal"
	"github.com/openacre/land-exchange-backend/internal/service/overlap"
)

// runPolygonChecks flags geometric duplication: a self-crossing ring,
// an exact copy of an accepted boundary, or partial overlap with one.
// Every matching corpus parcel contributes its own signal.
func (s *Service) runPolygonChecks(ctx context.Context, input DetectionInput) ([]*signal.Signal, error) {
	if input.Boundary.IsZero() {
		return nil, nil
	}

	var signals []*signal.Signal
	add := func(t signal.Type, score int, details string) error {
		sig, err := signal.New(input.UserID, input.ListingID, t, score, details)
		if err != nil {
			return err
		}
		signals = append(signals, sig)
		return nil
	}

	if geo.SelfIntersects(input.Boundary) {
		if err := add(signal.TypeSelfIntersectingPolygon, signal.ScoreSelfIntersection,
			"boundary ring crosses itself"); err != nil {
			return nil, err
		}
	}

	if s.corpus == nil {
		return signals, nil
	}
	entries, err := s.corpus.ListAcceptedBoundaries(ctx, input.ListingID)
	if err != nil {
		return nil, errors.NewExternalError("parcel corpus", err.Error()).WithCause(err)
	}

	candidateArea := geo.Area(input.Boundary)
	for _, entry := range entries {
		if entry.Boundary.IsZero() {
			continue
		}
		if geo.Equals(input.Boundary, entry.Boundary) {
			if err := add(signal.TypeDuplicatePolygon, signal.ScoreExactDuplicate,
				fmt.Sprintf("boundary is identical to accepted parcel %s (%q)", entry.ID, entry.Title)); err != nil {
				return nil, err
			}
			continue
		}
		if candidateArea <= 0 {
			continue
		}
		interArea, ok := geo.IntersectionArea(input.Boundary, entry.Boundary)
		if !ok || interArea <= 0 {
			continue
		}
		pct := interArea / candidateArea * 100

		var score int
		switch {
		case pct > overlap.NearDuplicatePct:
			score = signal.ScoreMajorOverlap
		case pct > overlap.BlockThresholdPct:
			score = signal.ScoreSignificantOverlap
		case pct > overlap.MinorOverlapFloorPct:
			score = signal.ScoreMinorOverlap
		default:
			continue
		}
		if err := add(signal.TypeSimilarPolygon, score,
			fmt.Sprintf("boundary overlaps accepted parcel %s (%q) by %.1f%%", entry.ID, entry.Title, pct)); err != nil {
			return nil, err
		}
	}
	return signals, nil
}

// runAccountChecks flags account-level abuse patterns: several profiles
// behind one phone number, a burst of listings inside the velocity
// window, and users with an existing signal history.
func (s *Service) runAccountChecks(ctx context.Context, input DetectionInput) ([]*signal.Signal, error) {
	var signals []*signal.Signal
	add := func(t signal.Type, score int, details string) error {
		sig, err := signal.New(input.UserID, input.ListingID, t, score, details)
		if err != nil {
			return err
		}
		signals = append(signals, sig)
		return nil
	}

	if s.profiles != nil && !input.Phone.IsEmpty() {
		count, err := s.profiles.CountProfilesByPhone(ctx, input.Phone)
		if err != nil {
			return nil, errors.NewExternalError("profile store", err.Error()).WithCause(err)
		}
		if count > 1 {
			if err := add(signal.TypeMultipleAccountsSamePhone, signal.ScoreDuplicatePhone,
				fmt.Sprintf("%d profiles share phone number %s", count, input.Phone)); err != nil {
				return nil, err
			}
		}
	}

	recent, err := s.countRecentListings(ctx, input)
	if err != nil {
		return nil, err
	}
	if recent > s.cfg.VelocityMaxListings {
		if err := add(signal.TypeListingVelocity, signal.ScoreListingVelocity,
			fmt.Sprintf("%d listings created within %s", recent, s.cfg.VelocityWindow)); err != nil {
			return nil, err
		}
	}

	if s.signals != nil {
		prior, err := s.signals.CountByUser(ctx, input.UserID)
		if err != nil {
			return nil, errors.NewExternalError("signal store", err.Error()).WithCause(err)
		}
		if prior >= s.cfg.RepeatOffenderThreshold {
			if err := add(signal.TypeRepeatOffender, signal.ScoreRepeatOffender,
				fmt.Sprintf("user already has %d recorded signals", prior)); err != nil {
				return nil, err
			}
		}
	}
	return signals, nil
}

// countRecentListings prefers the cache-backed tracker and falls back
// to the profile store when the tracker is absent or down.
func (s *Service) countRecentListings(ctx context.Context, input DetectionInput) (int, error) {
	if s.velocity != nil {
		count, err := s.velocity.CountWithin(ctx, input.UserID, s.cfg.VelocityWindow)
		if err == nil {
			return count, nil
		}
		s.logger.Warn("velocity tracker unavailable, falling back to profile store",
			"user_id", input.UserID, "error", err)
	}
	if s.profiles == nil {
		return 0, nil
	}
	count, err := s.profiles.CountListingsSince(ctx, input.UserID, time.Now().UTC().Add(-s.cfg.VelocityWindow))
	if err != nil {
		return 0, errors.NewExternalError("profile store", err.Error()).WithCause(err)
	}
	return count, nil
}

// runPriceChecks delegates to the external price-anomaly checker.
func (s *Service) runPriceChecks(ctx context.Context, input DetectionInput) ([]*signal.Signal, error) {
	if s.price == nil {
		return nil, nil
	}
	return s.price.CheckPrice(ctx, PriceCheckInput{
		ListingID:    input.ListingID,
		UserID:       input.UserID,
		Price:        input.Price,
		AreaM2:       geo.Area(input.Boundary),
		Region:       input.Region,
		PropertyType: input.PropertyType,
	})
}
