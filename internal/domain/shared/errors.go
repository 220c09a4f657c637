package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Unwrap exposes the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorWithCause creates a new domain error wrapping an underlying error
func NewDomainErrorWithCause(code, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Is matches on the error code so callers can compare against the sentinel
// values below with errors.Is regardless of the message text.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Common domain errors
var (
	ErrNotFound              = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists         = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput          = NewDomainError("VALIDATION_ERROR", "Invalid input provided")
	ErrConcurrencyConflict   = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrUnauthorized          = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrInvalidState          = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrNoWorkflowMatched     = NewDomainError("NO_WORKFLOW_MATCHED", "No approval workflow matches the request")
	ErrDuplicateDecision     = NewDomainError("DUPLICATE_DECISION", "A decision was already recorded for this level and approver")
	ErrDuplicateNumber       = NewDomainError("DUPLICATE_NUMBER", "Generated document number collided with a concurrent writer")
	ErrDecisionConflict      = NewDomainError("DECISION_CONFLICT", "A different decision was already recorded for this level and approver")
	ErrBusinessRuleViolation = NewDomainError("BUSINESS_RULE_VIOLATION", "Operation violates a business rule")
)
