package domain

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects which engine tables a computation returns.
type Mode string

const (
	ModePDSI   Mode = "pdsi"
	ModeSCPDSI Mode = "scpdsi"
	ModeBoth   Mode = "both"
)

// ParseMode validates s. An empty string selects ModeBoth.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModePDSI, ModeSCPDSI, ModeBoth:
		return m, nil
	case "":
		return ModeBoth, nil
	default:
		return "", fmt.Errorf("%w: %q (want pdsi, scpdsi or both)", ErrInvalidMode, s)
	}
}

// WantsOriginal reports whether the original Palmer table is returned.
func (m Mode) WantsOriginal() bool { return m == ModePDSI || m == ModeBoth }

// WantsSelfCalibrated reports whether the self-calibrated table is returned.
func (m Mode) WantsSelfCalibrated() bool { return m == ModeSCPDSI || m == ModeBoth }

// ComputationRequest is everything one engine run needs.
type ComputationRequest struct {
	ID      string          `json:"id,omitempty" yaml:"id,omitempty"`
	Site    SiteParameters  `json:"site" yaml:"site"`
	Records []ClimateRecord `json:"records" yaml:"records"`
	Start   int             `json:"start_year" yaml:"start_year"`
	End     int             `json:"end_year" yaml:"end_year"`
	Mode    Mode            `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// Normalize validates the mode and site parameters without touching records,
// returning a copy with Mode resolved.
func (r ComputationRequest) Normalize() (ComputationRequest, error) {
	mode, err := ParseMode(string(r.Mode))
	if err != nil {
		return r, err
	}
	r.Mode = mode

	if !isFinite(r.Site.AvailableWaterCapacity) || r.Site.AvailableWaterCapacity <= 0 {
		return r, fmt.Errorf("%w: available water capacity must be positive, got %v",
			ErrMalformedInput, r.Site.AvailableWaterCapacity)
	}
	if !isFinite(r.Site.Latitude) || r.Site.Latitude < -90 || r.Site.Latitude > 90 {
		return r, fmt.Errorf("%w: latitude %v out of range", ErrMalformedInput, r.Site.Latitude)
	}
	return r, nil
}

// ComputationResult holds the tables selected by the request mode.
type ComputationResult struct {
	Original       *ResultTable `json:"original,omitempty"`
	SelfCalibrated *ResultTable `json:"self_calibrated,omitempty"`
	ComputedAt     time.Time    `json:"computed_at"`
}

// Response is the transport envelope for one computation outcome.
type Response struct {
	RequestID      string       `json:"request_id,omitempty"`
	Status         string       `json:"status"`
	ErrorKind      string       `json:"error_kind,omitempty"`
	Error          string       `json:"error,omitempty"`
	Original       *ResultTable `json:"original,omitempty"`
	SelfCalibrated *ResultTable `json:"self_calibrated,omitempty"`
	ComputedAt     time.Time    `json:"computed_at"`
}

// Response statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// NewResponse builds the envelope for a finished computation.
func NewResponse(requestID string, result ComputationResult, err error) Response {
	if err != nil {
		return Response{
			RequestID:  requestID,
			Status:     StatusFailed,
			ErrorKind:  ErrorKind(err),
			Error:      err.Error(),
			ComputedAt: Now(),
		}
	}
	return Response{
		RequestID:      requestID,
		Status:         StatusOK,
		Original:       result.Original,
		SelfCalibrated: result.SelfCalibrated,
		ComputedAt:     result.ComputedAt,
	}
}
