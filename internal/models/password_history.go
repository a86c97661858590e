package models

import (
	"time"

	"github.com/google/uuid"
)

// PasswordHistory represents a retained prior password hash for a user
type PasswordHistory struct {
	ID           uuid.UUID `json:"id" db:"id"`
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
