package auth

import "context"

// Store describes the persistence operations required by the authentication
// flow. Implementations must be safe for concurrent use.
type Store interface {
	// FindActiveByEmail returns the active user with the given email joined
	// with its role, or ErrNotFound.
	FindActiveByEmail(ctx context.Context, email string) (*User, error)

	// TouchLastLogin records a successful authentication. Best-effort
	// bookkeeping; callers log failures and proceed.
	TouchLastLogin(ctx context.Context, userID string) error
}
