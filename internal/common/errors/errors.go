// Package errors provides standardized error handling for the matching and training workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidEvent     ErrorCode = "INVALID_EVENT"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	ErrCodeRetrievalFailed       ErrorCode = "RETRIEVAL_FAILED"
	ErrCodeExternalServiceFailed ErrorCode = "EXTERNAL_SERVICE_FAILED"
	ErrCodeEnrichmentFailed      ErrorCode = "ENRICHMENT_FAILED"
	ErrCodePersistenceFailed     ErrorCode = "PERSISTENCE_FAILED"
	ErrCodeEscalationFailed      ErrorCode = "ESCALATION_FAILED"
	ErrCodeNotificationFailed    ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeInsufficientData      ErrorCode = "INSUFFICIENT_DATA"
	ErrCodeTrainingServiceFailed ErrorCode = "TRAINING_SERVICE_FAILED"
	ErrCodeTrainingFailed        ErrorCode = "TRAINING_FAILED"
	ErrCodeEvaluationFailed      ErrorCode = "EVALUATION_FAILED"
	ErrCodePromotionFailed       ErrorCode = "PROMOTION_FAILED"
	ErrCodeTelemetryFailed       ErrorCode = "TELEMETRY_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause so errors.Is keeps working through the wrapper.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	e := &StandardError{
		Code:      code,
		Message:   message,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// NewInvalidEventError reports a trigger payload that matches no supported shape.
func NewInvalidEventError(err error) *StandardError {
	return newError(ErrCodeInvalidEvent, "Unsupported trigger event payload", err, false)
}

// NewValidationError reports missing senior data; the pipeline treats it as terminal.
func NewValidationError(details string) *StandardError {
	e := newError(ErrCodeValidationFailed, "Senior data failed validation", nil, false)
	e.Details = details
	return e
}

// NewRetrievalError reports an unavailable similarity store.
func NewRetrievalError(err error) *StandardError {
	return newError(ErrCodeRetrievalFailed, "Candidate retrieval failed", err, true)
}

// NewExternalServiceError creates a retryable error for a named downstream service.
func NewExternalServiceError(service string, err error) *StandardError {
	e := newError(ErrCodeExternalServiceFailed, "External service error", err, true)
	e.Metadata = map[string]interface{}{"service": service}
	return e
}

// NewEnrichmentError reports a candidate whose features could not be computed.
func NewEnrichmentError(caregiverID string, err error) *StandardError {
	e := newError(ErrCodeEnrichmentFailed, "Candidate enrichment failed", err, false)
	e.Metadata = map[string]interface{}{"caregiverId": caregiverID}
	return e
}

// NewPersistenceError reports a failed match-set write.
func NewPersistenceError(seniorID string, err error) *StandardError {
	e := newError(ErrCodePersistenceFailed, "Match persistence failed", err, true)
	e.Metadata = map[string]interface{}{"seniorId": seniorID}
	return e
}

// NewEscalationError reports a failed hand-off to the async retry path.
func NewEscalationError(err error) *StandardError {
	return newError(ErrCodeEscalationFailed, "Async escalation failed", err, true)
}

// NewNotificationSendFailedError creates a retryable notification error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	e := newError(ErrCodeNotificationFailed, "Notification send failed", err, true)
	e.Metadata = map[string]interface{}{"channel": channel}
	return e
}

// NewInsufficientDataError is returned as a status, not raised.
func NewInsufficientDataError(have, want int) *StandardError {
	e := newError(ErrCodeInsufficientData, "Insufficient data for retraining", nil, false)
	e.Details = fmt.Sprintf("samples: %d, required: %d", have, want)
	e.Metadata = map[string]interface{}{"sampleCount": have, "minRequired": want}
	return e
}

// NewTrainingServiceError reports a managed training job failure.
func NewTrainingServiceError(err error) *StandardError {
	return newError(ErrCodeTrainingServiceFailed, "Managed training service failed", err, true)
}

// NewTrainingFailedError reports that both training paths failed.
func NewTrainingFailedError(err error) *StandardError {
	return newError(ErrCodeTrainingFailed, "Model training failed", err, true)
}

// NewEvaluationError reports untrustworthy metrics; no promotion decision is made.
func NewEvaluationError(err error) *StandardError {
	return newError(ErrCodeEvaluationFailed, "Model evaluation failed", err, false)
}

// NewPromotionError reports a failed artifact copy or registry write.
func NewPromotionError(err error) *StandardError {
	return newError(ErrCodePromotionFailed, "Model promotion failed", err, true)
}

// NewTelemetryError is always swallowed by callers.
func NewTelemetryError(sink string, err error) *StandardError {
	e := newError(ErrCodeTelemetryFailed, "Telemetry write failed", err, false)
	e.Metadata = map[string]interface{}{"sink": sink}
	return e
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeRetrievalFailed,
		ErrCodePersistenceFailed,
		ErrCodeEscalationFailed,
		ErrCodeTrainingFailed,
		ErrCodePromotionFailed:
		return 3

	case ErrCodeExternalServiceFailed,
		ErrCodeNotificationFailed,
		ErrCodeTrainingServiceFailed:
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandard extracts a StandardError from an error chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether any StandardError in the chain carries code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandard(err)
	return ok && stdErr.Code == code
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "EVENT") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "RETRIEVAL") || strings.Contains(codeStr, "PERSISTENCE"):
		return "DATABASE"
	case strings.Contains(codeStr, "EXTERNAL") || strings.Contains(codeStr, "ESCALATION"):
		return "INTEGRATION"
	case strings.Contains(codeStr, "ENRICHMENT"):
		return "MATCHING"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "TRAINING") || strings.Contains(codeStr, "DATA"):
		return "TRAINING"
	case strings.Contains(codeStr, "EVALUATION") || strings.Contains(codeStr, "PROMOTION"):
		return "MODEL"
	case strings.Contains(codeStr, "TELEMETRY"):
		return "TELEMETRY"
	default:
		return "UNKNOWN"
	}
}
