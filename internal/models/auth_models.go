package models

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=100"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the response to a successful login
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	User        *User  `json:"user"`
	// PasswordExpired tells the client the user must change their password
	PasswordExpired bool `json:"password_expired"`
}

// ApprovalRequest represents the request to approve or reject an account
type ApprovalRequest struct {
	Notes string `json:"notes" binding:"max=500"`
}
