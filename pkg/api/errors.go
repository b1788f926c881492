package api

import "fmt"

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeServerError     ErrorType = "server_error"
	ErrorTypeInvalidRequest  ErrorType = "invalid_request"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeModelError      ErrorType = "model_error"
	ErrorTypeTooManyRequests ErrorType = "too_many_requests"
)

// APIError represents a structured API error with type, code, param, and
// message. It is used both as the error payload embedded in a Response and
// as the payload of a streaming "error" event.
type APIError struct {
	Type    ErrorType         `json:"type"`
	Code    string            `json:"code,omitempty"`
	Param   string            `json:"param,omitempty"`
	Message string            `json:"message"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorResponse wraps an APIError for JSON serialization as the top-level
// error body returned by the API on non-2xx statuses.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewInvalidRequestError creates an APIError for invalid request parameters.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Param:   param,
		Message: message,
	}
}

// NewNotFoundError creates an APIError for resources that cannot be found.
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeServerError,
		Message: message,
	}
}

// NewTooManyRequestsError creates an APIError for rate limiting.
func NewTooManyRequestsError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeTooManyRequests,
		Message: message,
	}
}

// SchemaError reports a decode failure: a required, non-discriminator field
// is absent or has the wrong type. The Path names the offending field
// relative to the enclosing object (e.g. "content[2].text").
type SchemaError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	if e.Path == "" {
		return "schema error: " + e.Message
	}
	return fmt.Sprintf("schema error at %s: %s", e.Path, e.Message)
}

// NewSchemaError creates a SchemaError for the given field path.
func NewSchemaError(path, message string) *SchemaError {
	return &SchemaError{Path: path, Message: message}
}

func missingField(path string) *SchemaError {
	return &SchemaError{Path: path, Message: "required field is missing"}
}

func wrongType(path, want string) *SchemaError {
	return &SchemaError{Path: path, Message: "field must be a " + want}
}
