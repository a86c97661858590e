package models

import (
	"time"

	"github.com/google/uuid"
)

// LoginAttempt is an immutable record of an authentication attempt.
// UserID is nil when the submitted identifier matched no account; the row is
// still recorded for brute-force analytics without revealing account existence.
type LoginAttempt struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	UserID    *uuid.UUID `json:"user_id" db:"user_id"`
	Email     string     `json:"email" db:"email"`
	IPAddress string     `json:"ip_address" db:"ip_address"`
	UserAgent string     `json:"user_agent" db:"user_agent"`
	Success   bool       `json:"success" db:"success"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}
