package parcel

import (
	"time"

	"github.com/google/uuid"

	"github.com/openacre/land-exchange-backend/internal/domain/errors"
	"github.com/openacre/land-exchange-backend/internal/domain/geo"
	"github.com/openacre/land-exchange-backend/internal/domain/values"
)

// Status is the publication state of a parcel boundary.
// Draft -> Validating -> {Blocked | Accepted}; Blocked is not terminal,
// a revised boundary restarts the cycle.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusValidating Status = "validating"
	StatusBlocked    Status = "blocked"
	StatusAccepted   Status = "accepted"
)

// Parcel is the land boundary entity attached to one listing. Accepted
// geometry is immutable: corrections bump BoundaryVersion and restart
// the publication cycle rather than mutating in place.
type Parcel struct {
	ID              uuid.UUID    `json:"id"`
	SellerID        uuid.UUID    `json:"seller_id"`
	Title           string       `json:"title"`
	PropertyType    string       `json:"property_type"`
	Region          string       `json:"region"`
	Price           values.Price `json:"price"`
	Boundary        geo.Polygon  `json:"boundary"`
	BoundaryVersion int          `json:"boundary_version"`
	Status          Status       `json:"status"`
	BlockReason     string       `json:"block_reason,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// NewParcel creates a draft parcel with the submitted boundary.
func NewParcel(sellerID uuid.UUID, title string, boundary geo.Polygon) (*Parcel, error) {
	if sellerID == uuid.Nil {
		return nil, errors.NewValidationError("INVALID_SELLER_ID", "parcel requires a seller id")
	}
	if title == "" {
		return nil, errors.NewValidationError("INVALID_TITLE", "parcel requires a title")
	}
	if boundary.IsZero() {
		return nil, errors.ErrBoundaryRequired
	}

	now := time.Now().UTC()
	return &Parcel{
		ID:              uuid.New(),
		SellerID:        sellerID,
		Title:           title,
		Boundary:        boundary,
		BoundaryVersion: 1,
		Status:          StatusDraft,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// BeginValidation moves the parcel into the validating state. Allowed
// from draft and from blocked (resubmission).
func (p *Parcel) BeginValidation() error {
	if !p.IsPublishable() {
		return errors.ErrParcelNotDraft
	}
	p.Status = StatusValidating
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Accept marks the boundary as accepted for publication.
func (p *Parcel) Accept() error {
	if p.Status != StatusValidating {
		return errors.NewBusinessError("INVALID_STATE_TRANSITION",
			"only a validating parcel can be accepted")
	}
	p.Status = StatusAccepted
	p.BlockReason = ""
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Block rejects publication with the first failing reason.
func (p *Parcel) Block(reason string) error {
	if p.Status != StatusValidating {
		return errors.NewBusinessError("INVALID_STATE_TRANSITION",
			"only a validating parcel can be blocked")
	}
	p.Status = StatusBlocked
	p.BlockReason = reason
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// ReviseBoundary installs a corrected boundary as a new version and
// returns the parcel to draft. This is the only way to change geometry
// once a version has been accepted.
func (p *Parcel) ReviseBoundary(boundary geo.Polygon) error {
	if boundary.IsZero() {
		return errors.ErrBoundaryRequired
	}
	if p.Status == StatusValidating {
		return errors.NewBusinessError("VALIDATION_IN_PROGRESS",
			"cannot revise a boundary while validation is running")
	}
	p.Boundary = boundary
	p.BoundaryVersion++
	p.Status = StatusDraft
	p.BlockReason = ""
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// IsPublishable reports whether the parcel can enter the publish flow.
func (p *Parcel) IsPublishable() bool {
	return p.Status == StatusDraft || p.Status == StatusBlocked
}

// CorpusEntry is the projection of an accepted parcel the overlap
// detector compares candidates against.
type CorpusEntry struct {
	ID       uuid.UUID   `json:"id"`
	Title    string      `json:"title"`
	Boundary geo.Polygon `json:"boundary"`
}
