package auth

import "errors"

var (
	// ErrUnauthenticated covers missing, malformed, expired, or forged access
	// tokens, and access tokens whose user no longer exists. Recoverable by
	// the client through the refresh exchange.
	ErrUnauthenticated = errors.New("auth: unauthenticated")

	// ErrInvalidRefresh covers missing, malformed, expired, or forged refresh
	// tokens, and refresh tokens whose user no longer exists. Terminal: the
	// client must re-login.
	ErrInvalidRefresh = errors.New("auth: invalid refresh token")

	// ErrForbidden means the caller is authenticated but lacks the required
	// role or does not own the record. Never recoverable via refresh.
	ErrForbidden = errors.New("auth: forbidden")

	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
	ErrInvalidInput  = errors.New("auth: invalid input")
)
