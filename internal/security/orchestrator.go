package security

import (
	"context"
	"fmt"
	"time"

	"sentinela/internal/audit"
	"sentinela/internal/auth"
	"sentinela/internal/config"
	"sentinela/internal/models"
	"sentinela/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Authenticator runs the login pipeline: attempt logging, lockout checks,
// account state checks, password verification, session rotation and token
// minting. Side effects like attempt rows and audit entries are best effort;
// their failures are logged but never fail the login decision.
type Authenticator struct {
	userRepo    repository.UserRepository
	attemptRepo repository.LoginAttemptRepository
	guard       *LockoutGuard
	policy      *PasswordPolicy
	sessions    *SessionManager
	authSvc     *auth.Service
	auditSvc    *audit.Service
	cfg         *config.Config
	log         *zap.SugaredLogger
}

// NewAuthenticator wires the login pipeline together
func NewAuthenticator(
	userRepo repository.UserRepository,
	attemptRepo repository.LoginAttemptRepository,
	guard *LockoutGuard,
	policy *PasswordPolicy,
	sessions *SessionManager,
	authSvc *auth.Service,
	auditSvc *audit.Service,
	cfg *config.Config,
	log *zap.SugaredLogger,
) *Authenticator {
	return &Authenticator{
		userRepo:    userRepo,
		attemptRepo: attemptRepo,
		guard:       guard,
		policy:      policy,
		sessions:    sessions,
		authSvc:     authSvc,
		auditSvc:    auditSvc,
		cfg:         cfg,
		log:         log,
	}
}

// LoginResult is what a successful login produces.
type LoginResult struct {
	User            *models.User
	Token           string
	PasswordExpired bool
}

// recordAttempt appends a login attempt row. userID is nil for identifiers
// that matched no account; the row is kept anyway for brute-force analytics.
func (a *Authenticator) recordAttempt(ctx context.Context, userID *uuid.UUID, email, ip, userAgent string, success bool) {
	err := a.attemptRepo.Create(ctx, &models.LoginAttempt{
		UserID:    userID,
		Email:     email,
		IPAddress: ip,
		UserAgent: userAgent,
		Success:   success,
	})
	if err != nil {
		a.log.Errorw("failed to record login attempt", "email", email, "error", err)
	}
}

// Login authenticates the credentials and mints an access token. Unknown
// email and wrong password both come back as ErrInvalidCredentials.
func (a *Authenticator) Login(ctx context.Context, email, password, ip, userAgent string) (*LoginResult, error) {
	now := time.Now()

	user, err := a.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if err == repository.ErrUserNotFound {
			a.recordAttempt(ctx, nil, email, ip, userAgent, false)
			a.auditSvc.LogAuth(ctx, nil, models.EventLoginFailed,
				fmt.Sprintf("login failed for unknown account %s", email), ip, userAgent)
			a.auditSvc.MonitorFailedLogin(ctx, email, ip, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	// Locked accounts reject the attempt before the password is even looked
	// at, and without touching the failure counter.
	if until, locked := a.guard.CheckLock(ctx, user, now); locked {
		a.recordAttempt(ctx, &user.ID, email, ip, userAgent, false)
		a.auditSvc.LogAuth(ctx, &user.ID, models.EventLoginFailed,
			fmt.Sprintf("login rejected for locked account %s", email), ip, userAgent)
		return nil, &AccountLockedError{Until: *until}
	}

	// The password is verified before any account-state check so that state
	// detail is only revealed to callers holding the real credential, and so
	// wrong guesses against disabled or unapproved accounts still count
	// toward the lockout.
	if a.authSvc.ComparePasswords(user.Password, password) != nil {
		a.recordAttempt(ctx, &user.ID, email, ip, userAgent, false)
		if _, err := a.guard.RecordFailure(ctx, user, ip, userAgent); err != nil {
			a.log.Errorw("failed to record login failure", "user_id", user.ID, "error", err)
		}
		a.auditSvc.LogAuth(ctx, &user.ID, models.EventLoginFailed,
			fmt.Sprintf("wrong password for %s", email), ip, userAgent)
		a.auditSvc.MonitorFailedLogin(ctx, email, ip, &user.ID)
		return nil, ErrInvalidCredentials
	}

	// Credential proven. Rejections past this point are account-state
	// decisions, not authentication failures: no failed-attempt row and no
	// counter movement.
	if !user.Active {
		a.auditSvc.LogAuth(ctx, &user.ID, models.EventLoginFailed,
			fmt.Sprintf("login rejected for disabled account %s", email), ip, userAgent)
		return nil, ErrAccountDisabled
	}

	if a.cfg.Auth.RequireApproval {
		switch user.ApprovalStatus {
		case models.ApprovalPending:
			a.auditSvc.LogAuth(ctx, &user.ID, models.EventLoginFailed,
				fmt.Sprintf("login rejected for unapproved account %s", email), ip, userAgent)
			return nil, ErrApprovalPending
		case models.ApprovalRejected:
			a.auditSvc.LogAuth(ctx, &user.ID, models.EventLoginFailed,
				fmt.Sprintf("login rejected for rejected account %s", email), ip, userAgent)
			return nil, ErrApprovalRejected
		}
	}

	// Success: clear counters, rotate the session before minting the token.
	a.recordAttempt(ctx, &user.ID, email, ip, userAgent, true)
	if err := a.guard.RecordSuccess(ctx, user, now, ip); err != nil {
		a.log.Errorw("failed to record login success", "user_id", user.ID, "error", err)
	}

	sessionID, err := a.sessions.Rotate(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to rotate session: %w", err)
	}

	token, err := a.authSvc.GenerateToken(user, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	user.FailedLoginAttempts = 0
	user.AccountLockedUntil = nil
	user.LastLoginAt = &now
	user.LastLoginIP = &ip
	user.CurrentSessionID = &sessionID

	a.auditSvc.LogAuth(ctx, &user.ID, models.EventLoginSuccess,
		fmt.Sprintf("successful login for %s", email), ip, userAgent)

	return &LoginResult{
		User:            user,
		Token:           token,
		PasswordExpired: user.PasswordExpired(now),
	}, nil
}

// Logout drops the user's session pointer, invalidating every outstanding
// token.
func (a *Authenticator) Logout(ctx context.Context, user *models.User, ip, userAgent string) error {
	if err := a.sessions.InvalidateAll(ctx, user.ID); err != nil {
		return err
	}
	a.auditSvc.LogAuth(ctx, &user.ID, models.EventLogout,
		fmt.Sprintf("logout for %s", user.Email), ip, userAgent)
	return nil
}

// LogoutOthers rotates the session and returns a fresh token, killing every
// other outstanding token while keeping the caller signed in.
func (a *Authenticator) LogoutOthers(ctx context.Context, user *models.User, ip, userAgent string) (string, error) {
	sessionID, err := a.sessions.Rotate(ctx, user.ID)
	if err != nil {
		return "", err
	}
	token, err := a.authSvc.GenerateToken(user, sessionID)
	if err != nil {
		return "", err
	}
	a.auditSvc.LogAuth(ctx, &user.ID, models.EventSessionRevoked,
		fmt.Sprintf("other sessions revoked for %s", user.Email), ip, userAgent)
	return token, nil
}

// ChangePassword verifies the current password, applies the history policy
// and revokes every other session. It returns a fresh token minted under the
// rotated session.
func (a *Authenticator) ChangePassword(ctx context.Context, user *models.User, currentPassword, newPassword, ip, userAgent string) (string, error) {
	if a.authSvc.ComparePasswords(user.Password, currentPassword) != nil {
		return "", ErrInvalidCredentials
	}

	if err := a.policy.Update(ctx, user, newPassword); err != nil {
		return "", err
	}

	sessionID, err := a.sessions.Rotate(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("failed to rotate session: %w", err)
	}
	token, err := a.authSvc.GenerateToken(user, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	a.auditSvc.LogAuth(ctx, &user.ID, models.EventPasswordChanged,
		fmt.Sprintf("password changed for %s", user.Email), ip, userAgent)
	return token, nil
}
