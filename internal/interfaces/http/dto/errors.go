package dto

import (
	"net/http"
	"strings"
)

// Error codes exposed on the wire. Handlers pick a code, the status
// code is derived from it so the two never disagree.
const (
	ErrCodeInternal = "ERR_INTERNAL"

	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"

	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"

	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"

	ErrCodeInvalidState      = "ERR_INVALID_STATE"
	ErrCodeBusinessRule      = "ERR_BUSINESS_RULE"
	ErrCodeNoWorkflowMatched = "ERR_NO_WORKFLOW_MATCHED"
	ErrCodeDecisionConflict  = "ERR_DECISION_CONFLICT"

	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

var httpStatusByCode = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeDecisionConflict:    http.StatusConflict,

	ErrCodeInvalidState:      http.StatusUnprocessableEntity,
	ErrCodeBusinessRule:      http.StatusUnprocessableEntity,
	ErrCodeNoWorkflowMatched: http.StatusUnprocessableEntity,

	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status for an error code,
// defaulting to 500 for codes without a mapping.
func GetHTTPStatus(code string) int {
	if status, ok := httpStatusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainCodeMapping folds domain-layer error codes into the wire format.
var domainCodeMapping = map[string]string{
	"NOT_FOUND":                  ErrCodeNotFound,
	"ALREADY_EXISTS":             ErrCodeAlreadyExists,
	"DUPLICATE_REQUEST":          ErrCodeAlreadyExists,
	"DUPLICATE_DECISION":         ErrCodeConflict,
	"DECISION_CONFLICT":          ErrCodeDecisionConflict,
	"NO_WORKFLOW_MATCHED":        ErrCodeNoWorkflowMatched,
	"BUSINESS_RULE_VIOLATION":    ErrCodeBusinessRule,
	"APPROVAL_COMPLETION_FAILED": ErrCodeInternal,
	"INVALID_INPUT":              ErrCodeInvalidInput,
	"INVALID_STATE":              ErrCodeInvalidState,
	"UNAUTHORIZED":               ErrCodeUnauthorized,
	"FORBIDDEN":                  ErrCodeForbidden,
	"CONCURRENCY_CONFLICT":       ErrCodeConcurrencyConflict,
	"VALIDATION_ERROR":           ErrCodeValidation,
	"BAD_REQUEST":                ErrCodeBadRequest,
	"INTERNAL_ERROR":             ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the wire format.
// Field-level INVALID_* codes all normalize to the generic validation
// code. Unknown codes are returned as-is.
func NormalizeErrorCode(code string) string {
	if wireCode, ok := domainCodeMapping[code]; ok {
		return wireCode
	}
	if strings.HasPrefix(code, "INVALID_") {
		return ErrCodeValidation
	}
	return code
}
