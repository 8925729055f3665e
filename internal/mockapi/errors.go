package mockapi

import "net/http"

// Error is the structured failure every mock API operation surfaces: a
// human-readable message plus a code following HTTP status semantics.
type Error struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (e *Error) Error() string {
	return e.Message
}

// NewError builds a structured API error.
func NewError(code int, message string) *Error {
	return &Error{Message: message, Code: code}
}

// CodeOf extracts the status code from an error, defaulting to 500 for
// anything that is not a structured API error.
func CodeOf(err error) int {
	if apiErr, ok := err.(*Error); ok {
		return apiErr.Code
	}
	return http.StatusInternalServerError
}
