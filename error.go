package mailer

import "fmt"

type ErrorReason string

const (
	REASON_UNKNOWN           ErrorReason = "UNKNOWN_ERROR"
	REASON_RATE_LIMITED      ErrorReason = "RATE_LIMITED"
	REASON_INVALID_EMAIL     ErrorReason = "INVALID_EMAIL"
	REASON_UNVERIFIED_DOMAIN ErrorReason = "UNVERIFIED_DOMAIN"
	REASON_MESSAGE_REJECTED  ErrorReason = "MESSAGE_REJECTED"
	REASON_SERVICE_ERROR     ErrorReason = "SERVICE_ERROR"
	REASON_VALIDATION_ERROR  ErrorReason = "VALIDATION_ERROR"
	REASON_AUTHENTICATION    ErrorReason = "AUTHENTICATION_ERROR"
	REASON_CONFIGURATION     ErrorReason = "CONFIGURATION_ERROR"
)

var _ error = &Error{}

// Error is returned by transports and constructors. The API fields are only
// populated when the provider answered with a structured error body.
type Error struct {
	Message string
	Reason  ErrorReason
	Cause   error

	// Code is the provider's error code, e.g. "1902" or "TooManyRequestsException".
	Code        string
	APIMessage  string
	Description string
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s.", e.Reason, e.Message)
	if e.Code != "" {
		s += fmt.Sprintf(" Code: %s.", e.Code)
	}
	if e.APIMessage != "" {
		s += fmt.Sprintf(" API message: %s.", e.APIMessage)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" Cause: %s", e.Cause)
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithAPIDetails attaches the provider's structured error fields and returns e.
func (e *Error) WithAPIDetails(code, apiMessage, description string) *Error {
	e.Code = code
	e.APIMessage = apiMessage
	e.Description = description
	return e
}

func newError(reason ErrorReason, message string, cause error) *Error {
	return &Error{
		Message: message,
		Reason:  reason,
		Cause:   cause,
	}
}

func NewUnknownError(message string, cause error) *Error {
	return newError(REASON_UNKNOWN, message, cause)
}

func NewRateLimitedError(message string, cause error) *Error {
	return newError(REASON_RATE_LIMITED, message, cause)
}

func NewInvalidEmailError(message string, cause error) *Error {
	return newError(REASON_INVALID_EMAIL, message, cause)
}

func NewUnverifiedDomainError(message string, cause error) *Error {
	return newError(REASON_UNVERIFIED_DOMAIN, message, cause)
}

func NewMessageRejectedError(message string, cause error) *Error {
	return newError(REASON_MESSAGE_REJECTED, message, cause)
}

func NewServiceError(message string, cause error) *Error {
	return newError(REASON_SERVICE_ERROR, message, cause)
}

func NewValidationError(message string, cause error) *Error {
	return newError(REASON_VALIDATION_ERROR, message, cause)
}

func NewAuthenticationError(message string, cause error) *Error {
	return newError(REASON_AUTHENTICATION, message, cause)
}

func NewConfigurationError(message string, cause error) *Error {
	return newError(REASON_CONFIGURATION, message, cause)
}
