package repository

import (
	"context"
	"time"

	"sentinela/internal/models"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user-related database operations.
// RecordLoginFailure must be atomic with respect to concurrent calls: two
// failures racing at the threshold must produce exactly one lock.
type UserRepository interface {
	Repository
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, filter UserFilter) ([]models.User, error)

	// RecordLoginFailure increments the failed-attempt counter in a single
	// atomic statement. When the post-increment counter reaches threshold the
	// lock deadline is set to lockUntil and the counter resets to zero. It
	// returns the lock deadline now in effect, or nil when not locked.
	RecordLoginFailure(ctx context.Context, id uuid.UUID, threshold int, lockUntil time.Time) (*time.Time, error)
	// RecordLoginSuccess clears the failure counter and lock, and stamps the
	// last-login time and IP.
	RecordLoginSuccess(ctx context.Context, id uuid.UUID, at time.Time, ip string) error
	// ClearLock clears an expired or administratively lifted lock.
	ClearLock(ctx context.Context, id uuid.UUID) error

	// UpdatePassword writes the new hash, password_changed_at and the expiry
	// deadline, appends the hash to password_history and prunes history beyond
	// historyLimit, all inside one transaction.
	UpdatePassword(ctx context.Context, id uuid.UUID, hashedPassword string, expiresAt *time.Time, historyLimit int) error

	UpdateSessionID(ctx context.Context, id uuid.UUID, sessionID *string) error
	SetApprovalStatus(ctx context.Context, id uuid.UUID, status models.ApprovalStatus) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error

	// DeactivateInactiveSince disables accounts whose last login predates the
	// cutoff and returns how many rows changed. Safe to re-run.
	DeactivateInactiveSince(ctx context.Context, cutoff time.Time) (int64, error)
	CountLocked(ctx context.Context, now time.Time) (int, error)
	CountPendingApproval(ctx context.Context) (int, error)
}

// UserFilter defines the filter options for listing users
type UserFilter struct {
	Search         *string // match against email or name
	ApprovalStatus *models.ApprovalStatus
	Active         *bool
	OrderBy        string
	OrderDesc      bool
	Limit          *int
	Offset         *int
}
