package security

import (
	"context"

	"sentinela/internal/config"
	"sentinela/internal/models"
	"sentinela/internal/repository"

	"github.com/google/uuid"
)

// SessionManager maintains the per-user session pointer. Tokens carry the
// session ID they were minted under; rotating the pointer invalidates every
// previously issued token, which is both the fixation defense on login and
// the mechanism behind "log out everywhere".
type SessionManager struct {
	userRepo repository.UserRepository
	cfg      *config.Config
}

// NewSessionManager creates a new session manager
func NewSessionManager(userRepo repository.UserRepository, cfg *config.Config) *SessionManager {
	return &SessionManager{userRepo: userRepo, cfg: cfg}
}

// Rotate issues a fresh session ID and stores it as the user's current
// session. Called on every successful login and after password changes.
func (m *SessionManager) Rotate(ctx context.Context, userID uuid.UUID) (string, error) {
	sessionID := uuid.New().String()
	if err := m.userRepo.UpdateSessionID(ctx, userID, &sessionID); err != nil {
		return "", err
	}
	return sessionID, nil
}

// InvalidateAll clears the session pointer so no outstanding token validates.
func (m *SessionManager) InvalidateAll(ctx context.Context, userID uuid.UUID) error {
	return m.userRepo.UpdateSessionID(ctx, userID, nil)
}

// Validate reports whether a token's session ID is still the user's current
// one. With single-session mode off, any non-empty session ID passes as long
// as the user has a session at all.
func (m *SessionManager) Validate(user *models.User, sessionID string) bool {
	if user.CurrentSessionID == nil {
		return false
	}
	if !m.cfg.Auth.SingleSession {
		return sessionID != ""
	}
	return *user.CurrentSessionID == sessionID
}
