package publication

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/openacre/land-exchange-backend/internal/domain/geo"
	"github.com/openacre/land-exchange-backend/internal/domain/parcel"
	"github.com/openacre/land-exchange-backend/internal/domain/values"
	"github.com/openacre/land-exchange-backend/internal/service/fraud"
	"github.com/openacre/land-exchange-backend/internal/service/geovalidation"
	"github.com/openacre/land-exchange-backend/internal/service/overlap"
)

// BoundaryValidator checks a boundary, raw or already parsed.
type BoundaryValidator interface {
	Validate(raw []byte) *geovalidation.Result
	ValidatePolygon(p geo.Polygon) *geovalidation.Result
}

// OverlapChecker compares a boundary against the accepted corpus.
type OverlapChecker interface {
	CheckOverlap(ctx context.Context, candidate geo.Polygon, excludeParcelID *uuid.UUID) *overlap.Result
}

// FraudDetector runs the fraud signal aggregation pipeline.
type FraudDetector interface {
	RunFullDetection(ctx context.Context, input fraud.DetectionInput) *fraud.DetectionSummary
}

// ParcelRepository loads and stores parcels.
type ParcelRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*parcel.Parcel, error)
	Update(ctx context.Context, p *parcel.Parcel) error
}

// Decision is the gateway's verdict on one publish attempt.
type Decision struct {
	Allow      bool                  `json:"allow"`
	Reason     string                `json:"reason,omitempty"`
	Status     parcel.Status         `json:"status"`
	Validation *geovalidation.Result `json:"validation,omitempty"`
	Overlap    *overlap.Result       `json:"overlap,omitempty"`
}

// Service is the single gate between draft and published. Validation
// runs before overlap detection so a malformed ring never reaches the
// geometric comparison stage, and any check that cannot complete
// blocks the parcel rather than letting it through.
type Service struct {
	parcels   ParcelRepository
	validator BoundaryValidator
	overlap   OverlapChecker
	detector  FraudDetector
	logger    *slog.Logger
}

// NewService wires the gateway. detector may be nil; fraud detection
// is advisory and never decides publishability on its own.
func NewService(
	parcels ParcelRepository,
	validator BoundaryValidator,
	overlapChecker OverlapChecker,
	detector FraudDetector,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		parcels:   parcels,
		validator: validator,
		overlap:   overlapChecker,
		detector:  detector,
		logger:    logger,
	}
}

// Publish runs the full decision pipeline for a stored parcel and
// persists the resulting state transition. The seller's phone number
// feeds the advisory fraud run; it may be empty.
func (s *Service) Publish(ctx context.Context, parcelID uuid.UUID, phone values.PhoneNumber) (*Decision, error) {
	p, err := s.parcels.GetByID(ctx, parcelID)
	if err != nil {
		return nil, err
	}

	decision, err := s.Decide(ctx, p, fraud.DetectionInput{
		ListingID:    &p.ID,
		UserID:       p.SellerID,
		Boundary:     p.Boundary,
		Price:        p.Price,
		Phone:        phone,
		Region:       p.Region,
		PropertyType: p.PropertyType,
	})
	if err != nil {
		return nil, err
	}

	if err := s.parcels.Update(ctx, p); err != nil {
		return nil, err
	}
	return decision, nil
}

// Decide moves the parcel through validating into accepted or blocked.
// It mutates the parcel in memory; the caller persists it.
func (s *Service) Decide(ctx context.Context, p *parcel.Parcel, detection fraud.DetectionInput) (*Decision, error) {
	if err := p.BeginValidation(); err != nil {
		return nil, err
	}

	validation := s.validator.ValidatePolygon(p.Boundary)
	if !validation.IsValid {
		reason := "boundary failed validation: " + strings.Join(validation.Errors, "; ")
		if err := p.Block(reason); err != nil {
			return nil, err
		}
		s.logger.Info("parcel blocked at validation",
			"parcel_id", p.ID, "errors", len(validation.Errors))
		return &Decision{
			Allow:      false,
			Reason:     reason,
			Status:     p.Status,
			Validation: validation,
		}, nil
	}

	overlapResult := s.overlap.CheckOverlap(ctx, p.Boundary, &p.ID)
	if !overlapResult.CanProceed {
		if err := p.Block(overlapResult.Message); err != nil {
			return nil, err
		}
		s.logger.Info("parcel blocked at overlap check",
			"parcel_id", p.ID, "max_overlap_pct", overlapResult.MaxPercentage)
		return &Decision{
			Allow:      false,
			Reason:     overlapResult.Message,
			Status:     p.Status,
			Validation: validation,
			Overlap:    overlapResult,
		}, nil
	}

	if err := p.Accept(); err != nil {
		return nil, err
	}

	// Fraud detection is advisory: it records signals for review but
	// never reverses the decision already made. It keeps running even
	// if the caller goes away.
	if s.detector != nil {
		go s.runDetection(context.WithoutCancel(ctx), detection)
	}

	s.logger.Info("parcel accepted for publication", "parcel_id", p.ID)
	return &Decision{
		Allow:      true,
		Status:     p.Status,
		Validation: validation,
		Overlap:    overlapResult,
	}, nil
}

func (s *Service) runDetection(ctx context.Context, input fraud.DetectionInput) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("fraud detection panicked", "panic", r)
		}
	}()
	summary := s.detector.RunFullDetection(ctx, input)
	s.logger.Info("fraud detection completed",
		"user_id", input.UserID,
		"total_signals", summary.TotalSignals,
		"total_score", summary.TotalScore)
}
