package security

import (
	"context"
	"time"

	"sentinela/internal/auth"
	"sentinela/internal/config"
	"sentinela/internal/models"
	"sentinela/internal/repository"

	"github.com/google/uuid"
)

// PasswordPolicy enforces history-based reuse rules and password expiry.
type PasswordPolicy struct {
	userRepo    repository.UserRepository
	historyRepo repository.PasswordHistoryRepository
	authSvc     *auth.Service
	cfg         *config.Config
}

// NewPasswordPolicy creates a new password policy engine
func NewPasswordPolicy(userRepo repository.UserRepository, historyRepo repository.PasswordHistoryRepository, authSvc *auth.Service, cfg *config.Config) *PasswordPolicy {
	return &PasswordPolicy{
		userRepo:    userRepo,
		historyRepo: historyRepo,
		authSvc:     authSvc,
		cfg:         cfg,
	}
}

// IsInHistory reports whether the plaintext candidate matches any of the
// user's retained prior password hashes. The comparison is bcrypt per entry;
// hashes are never compared to each other.
func (p *PasswordPolicy) IsInHistory(ctx context.Context, userID uuid.UUID, candidate string) (bool, error) {
	entries, err := p.historyRepo.ListRecent(ctx, userID, p.cfg.Security.PasswordHistoryLimit)
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		if p.authSvc.ComparePasswords(entry.PasswordHash, candidate) == nil {
			return true, nil
		}
	}
	return false, nil
}

// Update validates the new password against the current hash and the history,
// then writes the new hash, appends it to the history and prunes beyond the
// retention limit, all in one repository transaction.
func (p *PasswordPolicy) Update(ctx context.Context, user *models.User, newPassword string) error {
	if p.authSvc.ComparePasswords(user.Password, newPassword) == nil {
		return ErrSamePassword
	}

	reused, err := p.IsInHistory(ctx, user.ID, newPassword)
	if err != nil {
		return err
	}
	if reused {
		return repository.ErrPasswordReuse
	}

	hashed, err := p.authSvc.HashPassword(newPassword)
	if err != nil {
		return err
	}

	return p.userRepo.UpdatePassword(ctx, user.ID, hashed, p.ExpiryDeadline(time.Now()), p.cfg.Security.PasswordHistoryLimit)
}

// ExpiryDeadline computes the expiry timestamp for a password set now.
// Returns nil when expiry is disabled.
func (p *PasswordPolicy) ExpiryDeadline(now time.Time) *time.Time {
	if p.cfg.Security.PasswordExpiryDays <= 0 {
		return nil
	}
	deadline := now.AddDate(0, 0, p.cfg.Security.PasswordExpiryDays)
	return &deadline
}
