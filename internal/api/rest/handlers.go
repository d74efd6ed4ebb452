package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/openacre/land-exchange-backend/internal/domain/errors"
	"github.com/openacre/land-exchange-backend/internal/domain/geo"
	"github.com/openacre/land-exchange-backend/internal/domain/parcel"
	"github.com/openacre/land-exchange-backend/internal/domain/values"
	"github.com/openacre/land-exchange-backend/internal/service/fraud"
	"github.com/openacre/land-exchange-backend/internal/service/geovalidation"
	"github.com/openacre/land-exchange-backend/internal/service/overlap"
	"github.com/openacre/land-exchange-backend/internal/service/publication"
)

const maxBodyBytes = 1 << 20 // 1 MiB; boundary rings are small

// ParcelStore is the subset of the parcel repository the API needs
// directly.
type ParcelStore interface {
	Create(ctx context.Context, p *parcel.Parcel) error
	GetByID(ctx context.Context, id uuid.UUID) (*parcel.Parcel, error)
}

// BoundaryValidator checks a raw GeoJSON boundary submission.
type BoundaryValidator interface {
	Validate(raw []byte) *geovalidation.Result
}

// OverlapChecker compares a boundary against the accepted corpus.
type OverlapChecker interface {
	CheckOverlap(ctx context.Context, candidate geo.Polygon, excludeParcelID *uuid.UUID) *overlap.Result
}

// FraudDetector runs the signal aggregation pipeline on demand.
type FraudDetector interface {
	RunFullDetection(ctx context.Context, input fraud.DetectionInput) *fraud.DetectionSummary
}

// PublishGateway decides whether a parcel may go live.
type PublishGateway interface {
	Publish(ctx context.Context, parcelID uuid.UUID, phone values.PhoneNumber) (*publication.Decision, error)
}

// VelocityRecorder records listing creations for the velocity check.
type VelocityRecorder interface {
	RecordListing(ctx context.Context, userID uuid.UUID) error
}

// Readiness reports whether a backing dependency can serve traffic.
type Readiness interface {
	Healthy(ctx context.Context) bool
}

// Handler owns the HTTP endpoints.
type Handler struct {
	validator BoundaryValidator
	overlap   OverlapChecker
	fraud     FraudDetector
	gateway   PublishGateway
	parcels   ParcelStore
	velocity  VelocityRecorder
	readiness Readiness
	version   string
	logger    *slog.Logger
	validate  *validator.Validate
}

// NewHandler wires the endpoint handlers. velocity and readiness may
// be nil.
func NewHandler(
	validatorSvc BoundaryValidator,
	overlapSvc OverlapChecker,
	fraudSvc FraudDetector,
	gateway PublishGateway,
	parcels ParcelStore,
	velocity VelocityRecorder,
	readiness Readiness,
	version string,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		validator: validatorSvc,
		overlap:   overlapSvc,
		fraud:     fraudSvc,
		gateway:   gateway,
		parcels:   parcels,
		velocity:  velocity,
		readiness: readiness,
		version:   version,
		logger:    logger,
		validate:  validator.New(),
	}
}

// handleValidateBoundary checks a raw GeoJSON boundary and returns the
// verdict with metrics. Always 200 when the request itself is well
// formed; geometry problems live inside the result body.
func (h *Handler) handleValidateBoundary(w http.ResponseWriter, r *http.Request) {
	var req ValidateBoundaryRequest
	if !h.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.validator.Validate(req.Boundary))
}

// handleCheckOverlap measures the candidate against the accepted
// corpus.
func (h *Handler) handleCheckOverlap(w http.ResponseWriter, r *http.Request) {
	var req CheckOverlapRequest
	if !h.decode(w, r, &req) {
		return
	}

	candidate, err := geo.ParseBoundary(req.Boundary)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.overlap.CheckOverlap(r.Context(), candidate, req.ExcludeParcelID))
}

// handleCreateParcel registers a draft parcel.
func (h *Handler) handleCreateParcel(w http.ResponseWriter, r *http.Request) {
	var req CreateParcelRequest
	if !h.decode(w, r, &req) {
		return
	}

	boundary, err := geo.ParseBoundary(req.Boundary)
	if err != nil {
		writeAppError(w, err)
		return
	}

	p, err := parcel.NewParcel(req.SellerID, req.Title, boundary)
	if err != nil {
		writeAppError(w, err)
		return
	}
	p.PropertyType = req.PropertyType
	p.Region = req.Region

	if req.PriceAmount != "" {
		amount, err := decimal.NewFromString(req.PriceAmount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_PRICE", "price_amount is not a valid decimal")
			return
		}
		price, err := values.NewPrice(amount, req.Currency)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_PRICE", err.Error())
			return
		}
		p.Price = price
	}

	if err := h.parcels.Create(r.Context(), p); err != nil {
		writeAppError(w, err)
		return
	}

	if h.velocity != nil {
		if err := h.velocity.RecordListing(r.Context(), p.SellerID); err != nil {
			h.logger.WarnContext(r.Context(), "failed to record listing velocity",
				"seller_id", p.SellerID, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, p)
}

// handlePublishParcel runs the publish decision pipeline.
func (h *Handler) handlePublishParcel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARCEL_ID", "parcel id must be a UUID")
		return
	}

	var req PublishParcelRequest
	if !h.decode(w, r, &req) {
		return
	}

	var phone values.PhoneNumber
	if req.Phone != "" {
		phone, err = values.NewPhoneNumber(req.Phone)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_PHONE", err.Error())
			return
		}
	}

	decision, err := h.gateway.Publish(r.Context(), id, phone)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

// handleGetParcel returns one parcel.
func (h *Handler) handleGetParcel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARCEL_ID", "parcel id must be a UUID")
		return
	}

	p, err := h.parcels.GetByID(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleDetectFraud runs the aggregator on demand, for review tooling.
func (h *Handler) handleDetectFraud(w http.ResponseWriter, r *http.Request) {
	var req DetectFraudRequest
	if !h.decode(w, r, &req) {
		return
	}

	input := fraud.DetectionInput{
		ListingID:    req.ListingID,
		UserID:       req.UserID,
		Region:       req.Region,
		PropertyType: req.PropertyType,
	}
	if len(req.Boundary) > 0 {
		boundary, err := geo.ParseBoundary(req.Boundary)
		if err != nil {
			writeAppError(w, err)
			return
		}
		input.Boundary = boundary
	}
	if req.Phone != "" {
		phone, err := values.NewPhoneNumber(req.Phone)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_PHONE", err.Error())
			return
		}
		input.Phone = phone
	}
	if req.PriceAmount != "" {
		amount, err := decimal.NewFromString(req.PriceAmount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_PRICE", "price_amount is not a valid decimal")
			return
		}
		price, err := values.NewPrice(amount, req.Currency)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_PRICE", err.Error())
			return
		}
		input.Price = price
	}

	writeJSON(w, http.StatusOK, h.fraud.RunFullDetection(r.Context(), input))
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: h.version})
}

func (h *Handler) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if h.readiness != nil && !h.readiness.Healthy(r.Context()) {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Version: h.version})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ready", Version: h.version})
}

// decode reads, unmarshals and struct-validates a request body. On
// failure it writes the error response and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	// An empty body is fine for requests with no required fields;
	// struct validation below catches the rest.
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST_BODY", err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	writeJSON(w, status, resp)
}

// writeAppError maps domain errors to their HTTP status.
func writeAppError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		writeError(w, appErr.StatusCode, appErr.Code, appErr.Message)
		return
	}
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}
