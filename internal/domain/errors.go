package domain

import "errors"

// Error taxonomy for the credential and session-token lifecycle. Handlers
// match these with errors.Is; infrastructure failures wrap
// ErrStoreUnavailable so retry logic never fires on a definitive rejection.
var (
	// ErrUserExists is returned by Register when the email is taken.
	ErrUserExists = errors.New("user already exists")

	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountDisabled is returned for inactive accounts before the
	// password comparison outcome is revealed.
	ErrAccountDisabled = errors.New("account disabled")

	// ErrInvalidToken covers bad signature, wrong issuer/audience and
	// expiry on either token type.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrTokenRevoked means the refresh token verified but its cache
	// record is gone.
	ErrTokenRevoked = errors.New("refresh token revoked")

	// ErrInvalidUser means a valid refresh token references a user that
	// is now absent or inactive.
	ErrInvalidUser = errors.New("user not found or inactive")

	// ErrStoreUnavailable marks transient backend failures (Postgres or
	// Redis unreachable/timed out). Retryable.
	ErrStoreUnavailable = errors.New("store unavailable")
)
