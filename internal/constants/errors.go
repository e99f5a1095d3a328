package constants

import "net/http"

// APIError represents a standardized API error with code, message, and HTTP status.
// Use these predefined errors for consistent API responses across the application.
type APIError struct {
	Code    string
	Message string
	Status  int
}

// WithMessage returns a copy of the APIError with a custom message.
// Useful for validation errors or other dynamic messages.
func (e APIError) WithMessage(message string) APIError {
	return APIError{
		Code:    e.Code,
		Message: message,
		Status:  e.Status,
	}
}

// Common errors - shared across multiple modules
var (
	ErrInvalidRequestBody = APIError{
		Code:    CodeInvalidRequest,
		Message: MsgInvalidRequestBody,
		Status:  http.StatusBadRequest,
	}
	ErrInternalError = APIError{
		Code:    CodeInternalError,
		Message: MsgInternalError,
		Status:  http.StatusInternalServerError,
	}
	ErrUnauthorized = APIError{
		Code:    CodeUnauthorized,
		Message: MsgUnauthorized,
		Status:  http.StatusUnauthorized,
	}
)

var (
	// Redirect-specific errors
	ErrInvalidSlug = APIError{
		Code:    CodeInvalidSlug,
		Message: MsgInvalidSlug,
		Status:  http.StatusBadRequest,
	}
	ErrLinkNotFound = APIError{
		Code:    CodeLinkNotFound,
		Message: MsgLinkNotFound,
		Status:  http.StatusNotFound,
	}
	ErrInvalidDomain = APIError{
		Code:    CodeInvalidDomain,
		Message: MsgInvalidDomain,
		Status:  http.StatusBadRequest,
	}

	// Configuration errors. A missing secret must fail loudly, never
	// silently no-op on a public-facing path.
	ErrProvisioningUnconfigured = APIError{
		Code:    CodeProvisioningUnconfigured,
		Message: MsgProvisioningUnconfigured,
		Status:  http.StatusServiceUnavailable,
	}
	ErrAPIKeysUnconfigured = APIError{
		Code:    CodeAPIKeysUnconfigured,
		Message: MsgAPIKeysUnconfigured,
		Status:  http.StatusServiceUnavailable,
	}
	ErrRelayUnavailable = APIError{
		Code:    CodeRelayUnavailable,
		Message: MsgRelayUnavailable,
		Status:  http.StatusServiceUnavailable,
	}
)
