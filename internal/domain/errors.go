package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for contract violations by the caller. These are hard
// failures, not data-quality findings: data-shape problems come back as
// ValidationResult values so the orchestrator can always produce a result.
var (
	ErrNotFound                 = errors.New("not found")
	ErrTooFewVertices           = errors.New("irregular area requires at least 3 vertices")
	ErrMissingCTPStartDate      = errors.New("post-ctp phase requires a CTP start date")
	ErrUnsupportedUnit          = errors.New("unsupported measurement unit")
	ErrInvalidPhase             = errors.New("invalid compliance phase")
	ErrNoMeasurements           = errors.New("measurement history is empty")
	ErrUnnormalizedMeasurement  = errors.New("measurement is not normalized to centimeters")
	ErrInvalidMeasurementStatus = errors.New("invalid measurement validation status")
)

// APIError represents a standardized error response at the HTTP boundary.
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios.
const (
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeDatabaseError  = "DATABASE_ERROR"
	ErrCodeEligibility    = "ELIGIBILITY_CHECK_ERROR"
	ErrCodeCompliance     = "COMPLIANCE_EVALUATION_ERROR"
	ErrCodeRateLimit      = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalServer = "INTERNAL_SERVER_ERROR"
	ErrCodeValidation     = "VALIDATION_ERROR"
)

// ValidationError represents input validation errors with field context.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewAPIError creates a new APIError with timestamp.
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string, value any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
