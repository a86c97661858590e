package security

import (
	"context"
	"time"

	"sentinela/internal/audit"
	"sentinela/internal/config"
	"sentinela/internal/models"
	"sentinela/internal/repository"

	"go.uber.org/zap"
)

// LockoutGuard tracks consecutive login failures and locks accounts when the
// threshold is crossed. The counter lives in the users row and is incremented
// by a single SQL statement, so concurrent failures cannot both slip under
// the threshold.
type LockoutGuard struct {
	userRepo repository.UserRepository
	auditSvc *audit.Service
	cfg      *config.Config
	log      *zap.SugaredLogger
}

// NewLockoutGuard creates a new lockout guard
func NewLockoutGuard(userRepo repository.UserRepository, auditSvc *audit.Service, cfg *config.Config, log *zap.SugaredLogger) *LockoutGuard {
	return &LockoutGuard{
		userRepo: userRepo,
		auditSvc: auditSvc,
		cfg:      cfg,
		log:      log,
	}
}

// CheckLock reports whether the user is currently locked out. An expired lock
// is cleared lazily here rather than by a background job; the clear is best
// effort since the deadline check alone already admits the user.
func (g *LockoutGuard) CheckLock(ctx context.Context, user *models.User, now time.Time) (*time.Time, bool) {
	if user.AccountLockedUntil == nil {
		return nil, false
	}
	if user.IsLocked(now) {
		until := *user.AccountLockedUntil
		return &until, true
	}

	if err := g.userRepo.ClearLock(ctx, user.ID); err != nil {
		g.log.Warnw("failed to clear expired lock", "user_id", user.ID, "error", err)
	}
	user.AccountLockedUntil = nil
	user.FailedLoginAttempts = 0
	return nil, false
}

// RecordFailure increments the failure counter and returns the lock deadline
// if this failure triggered a lockout. The counter resets to zero at the lock
// moment; attempts made while locked are rejected upstream and never reach
// the counter.
func (g *LockoutGuard) RecordFailure(ctx context.Context, user *models.User, ip, userAgent string) (*time.Time, error) {
	wasLocked := user.AccountLockedUntil != nil

	lockUntil := time.Now().Add(g.cfg.Security.LockoutDuration)
	deadline, err := g.userRepo.RecordLoginFailure(ctx, user.ID, g.cfg.Security.MaxFailedLogins, lockUntil)
	if err != nil {
		return nil, err
	}

	if deadline != nil && !wasLocked {
		g.auditSvc.NotifyAccountLocked(ctx, user.ID, user.Email, ip, userAgent, *deadline)
	}
	return deadline, nil
}

// RecordSuccess clears the counter and lock, and stamps last-login metadata.
func (g *LockoutGuard) RecordSuccess(ctx context.Context, user *models.User, at time.Time, ip string) error {
	return g.userRepo.RecordLoginSuccess(ctx, user.ID, at, ip)
}
