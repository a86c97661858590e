// Package security implements account protection: login lockout, password
// history policy, session rotation and the authentication pipeline.
package security

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials is returned for unknown accounts and wrong
	// passwords alike, so responses never reveal whether an email exists.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled indicates the account has been deactivated
	ErrAccountDisabled = errors.New("account is disabled")
	// ErrApprovalPending indicates the account awaits administrator approval
	ErrApprovalPending = errors.New("account is pending approval")
	// ErrApprovalRejected indicates the account registration was rejected
	ErrApprovalRejected = errors.New("account registration was rejected")
	// ErrSamePassword indicates the new password equals the current one
	ErrSamePassword = errors.New("new password must differ from the current password")
)

// AccountLockedError carries the lock deadline so callers can tell the user
// when to retry.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account is locked until %s", e.Until.Format(time.RFC3339))
}

// IsAccountLocked reports whether err is an AccountLockedError and returns it.
func IsAccountLocked(err error) (*AccountLockedError, bool) {
	var lockErr *AccountLockedError
	if errors.As(err, &lockErr) {
		return lockErr, true
	}
	return nil, false
}
