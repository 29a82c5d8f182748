package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeResourceLoad     = "RESOURCE_LOAD_FAILURE"
	ErrCodeModelUnavailable = "MODEL_UNAVAILABLE"
	ErrCodeRetrieval        = "RETRIEVAL_FAILURE"
	ErrCodeGeneration       = "GENERATION_FAILURE"
	ErrCodeSession          = "SESSION_CREATION_FAILURE"
	ErrCodeBusy             = "CONVERSATION_BUSY"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrBlankMessage = NewDomainError(ErrCodeValidation, "message text is blank")
)

// Availability errors; these mark degraded modes, not crashes.
var (
	ErrEmbedderUnavailable = NewDomainError(ErrCodeRetrieval, "embedding backend is not initialized")
	ErrModelNotLoaded      = NewDomainError(ErrCodeModelUnavailable, "language model engine is not loaded")
	ErrSessionNotReady     = NewDomainError(ErrCodeSession, "inference session could not be created")
)

// Flow-control errors
var (
	ErrConversationBusy = NewDomainError(ErrCodeBusy, "a generation is already in flight")
)
