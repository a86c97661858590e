package models

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	// Permission carries the denied permission slug on authorization failures
	Permission string `json:"permission,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string `json:"message"`
}
