package rest

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ValidateBoundaryRequest carries a raw GeoJSON boundary. The geometry
// field is kept opaque here; normalization happens in the validator.
type ValidateBoundaryRequest struct {
	Boundary json.RawMessage `json:"boundary" validate:"required"`
}

// CheckOverlapRequest asks how much of the candidate boundary overlaps
// accepted parcels. ExcludeParcelID skips the caller's own stored row.
type CheckOverlapRequest struct {
	Boundary        json.RawMessage `json:"boundary" validate:"required"`
	ExcludeParcelID *uuid.UUID      `json:"exclude_parcel_id,omitempty"`
}

// CreateParcelRequest registers a new draft parcel.
type CreateParcelRequest struct {
	SellerID     uuid.UUID       `json:"seller_id" validate:"required"`
	Title        string          `json:"title" validate:"required,min=3,max=200"`
	PropertyType string          `json:"property_type" validate:"omitempty,max=50"`
	Region       string          `json:"region" validate:"omitempty,max=100"`
	PriceAmount  string          `json:"price_amount" validate:"omitempty"`
	Currency     string          `json:"currency" validate:"omitempty,len=3"`
	Boundary     json.RawMessage `json:"boundary" validate:"required"`
}

// PublishParcelRequest provides the seller context the fraud pipeline
// needs alongside the publish decision.
type PublishParcelRequest struct {
	Phone string `json:"phone" validate:"omitempty,e164"`
}

// DetectFraudRequest runs the aggregator for an arbitrary submission,
// used by the review tooling.
type DetectFraudRequest struct {
	ListingID    *uuid.UUID      `json:"listing_id,omitempty"`
	UserID       uuid.UUID       `json:"user_id" validate:"required"`
	Boundary     json.RawMessage `json:"boundary,omitempty"`
	Phone        string          `json:"phone" validate:"omitempty,e164"`
	Region       string          `json:"region" validate:"omitempty,max=100"`
	PropertyType string          `json:"property_type" validate:"omitempty,max=50"`
	PriceAmount  string          `json:"price_amount" validate:"omitempty"`
	Currency     string          `json:"currency" validate:"omitempty,len=3"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// HealthResponse reports process health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
