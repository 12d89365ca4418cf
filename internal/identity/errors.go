package identity

import "errors"

// Failure taxonomy surfaced to callers. Each maps to a distinct user-facing
// message at the HTTP layer; none is retried automatically.
var (
	ErrInvalidEmail  = errors.New("identity: invalid email")
	ErrUserDisabled  = errors.New("identity: user disabled")
	ErrUserNotFound  = errors.New("identity: user not found")
	ErrWrongPassword = errors.New("identity: wrong password")
	ErrEmailInUse    = errors.New("identity: email already registered")
	ErrWeakPassword  = errors.New("identity: password too weak")
)

// ErrInvalidToken indicates the session token failed validation.
var ErrInvalidToken = errors.New("invalid token")
