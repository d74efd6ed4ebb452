package fraud

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openacre/land-exchange-backend/internal/domain/signal"
)

// Service aggregates the fraud checkers. Checkers run concurrently and
// independently: one checker failing leaves the others' findings
// intact, and a failed checker is reported as failed rather than as
// "no signals".
type Service struct {
	corpus   CorpusRepository
	signals  SignalRepository
	profiles ProfileRepository
	velocity VelocityTracker
	price    PriceAnomalyChecker
	cfg      Config
	logger   *slog.Logger
}

// NewService wires the aggregator. velocity and price may be nil; the
// corresponding checks degrade gracefully.
func NewService(
	corpus CorpusRepository,
	signals SignalRepository,
	profiles ProfileRepository,
	velocity VelocityTracker,
	price PriceAnomalyChecker,
	cfg Config,
	logger *slog.Logger,
) *Service {
	if cfg.VelocityWindow <= 0 {
		cfg.VelocityWindow = DefaultConfig().VelocityWindow
	}
	if cfg.VelocityMaxListings <= 0 {
		cfg.VelocityMaxListings = DefaultConfig().VelocityMaxListings
	}
	if cfg.RepeatOffenderThreshold <= 0 {
		cfg.RepeatOffenderThreshold = DefaultConfig().RepeatOffenderThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		corpus:   corpus,
		signals:  signals,
		profiles: profiles,
		velocity: velocity,
		price:    price,
		cfg:      cfg,
		logger:   logger,
	}
}

// RunFullDetection runs the polygon, account and price checkers
// concurrently and waits for all of them to settle. Each checker
// persists its own batch; persistence failures are logged and the
// in-memory findings still count toward the summary.
func (s *Service) RunFullDetection(ctx context.Context, input DetectionInput) *DetectionSummary {
	summary := &DetectionSummary{
		UserID:    input.UserID,
		ListingID: input.ListingID,
		RanAt:     time.Now().UTC(),
		Checkers:  make([]CheckerResult, 3),
	}

	checkers := []struct {
		name string
		run  func(context.Context, DetectionInput) ([]*signal.Signal, error)
	}{
		{CheckerPolygon, s.runPolygonChecks},
		{CheckerAccount, s.runAccountChecks},
		{CheckerPrice, s.runPriceChecks},
	}

	var wg sync.WaitGroup
	for i, checker := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			summary.Checkers[i] = s.runOne(ctx, checker.name, checker.run, input)
		}()
	}
	wg.Wait()

	for _, result := range summary.Checkers {
		summary.TotalSignals += len(result.Signals)
		for _, sig := range result.Signals {
			summary.TotalScore += sig.Score
		}
	}
	return summary
}

// runOne executes a single checker, converting panics and errors into
// a failed result so the run as a whole always settles.
func (s *Service) runOne(
	ctx context.Context,
	name string,
	run func(context.Context, DetectionInput) ([]*signal.Signal, error),
	input DetectionInput,
) (result CheckerResult) {
	result.Checker = name

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("fraud checker panicked",
				"checker", name, "panic", fmt.Sprint(r), "user_id", input.UserID)
			result = CheckerResult{Checker: name, Failed: true, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()

	signals, err := run(ctx, input)
	if err != nil {
		s.logger.Warn("fraud checker failed",
			"checker", name, "error", err, "user_id", input.UserID)
		result.Failed = true
		result.Error = err.Error()
		return result
	}

	signals = s.dedupe(ctx, input, signals)
	result.Signals = signals

	if len(signals) > 0 && s.signals != nil {
		// Persistence must survive the caller abandoning the request.
		if err := s.signals.SaveBatch(context.WithoutCancel(ctx), signals); err != nil {
			s.logger.Error("failed to persist fraud signals",
				"checker", name, "count", len(signals), "error", err)
		}
	}
	return result
}

// dedupe drops signals whose user/listing/type key was already
// recorded within the configured window. With a zero window every
// finding accumulates.
func (s *Service) dedupe(ctx context.Context, input DetectionInput, signals []*signal.Signal) []*signal.Signal {
	if s.cfg.DedupWindow <= 0 || len(signals) == 0 || s.signals == nil {
		return signals
	}

	since := time.Now().UTC().Add(-s.cfg.DedupWindow)
	recent, err := s.signals.ListByUserSince(ctx, input.UserID, since)
	if err != nil {
		// Deduplication is best effort; on lookup failure keep
		// everything rather than silently dropping findings.
		s.logger.Warn("signal dedup lookup failed", "user_id", input.UserID, "error", err)
		return signals
	}

	seen := make(map[string]struct{}, len(recent))
	for _, sig := range recent {
		seen[sig.Key()] = struct{}{}
	}

	kept := signals[:0]
	for _, sig := range signals {
		if _, dup := seen[sig.Key()]; !dup {
			kept = append(kept, sig)
		}
	}
	return kept
}
