package goToken

import (
	"errors"
	"fmt"
)

var (
	// ErrJWT is the root of every token lifecycle failure. All *Error values match it.
	ErrJWT = errors.New("jwt error")
	// ErrInvalidClaim is matched by errors raised while constructing a claim.
	ErrInvalidClaim = errors.New("invalid claim")
	// ErrTokenInvalid is matched by structural and semantic token defects.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is matched when exp has passed or iat is beyond the max refresh period.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenBlacklisted is matched when a decoded token is present in the blacklist.
	ErrTokenBlacklisted = errors.New("token blacklisted")

	// ErrBlacklistDisabled is returned by invalidation when the blacklist is switched off.
	ErrBlacklistDisabled = &Error{Kind: KindJWT, Message: "You must have the blacklist enabled to invalidate a token."}

	// ErrEngineNotReady is returned by a zero or nil Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrRefreshRateLimited is returned when the per-subject refresh budget is spent.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrInvalidConfig is returned by Build and the config loader for unusable settings.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrBuilderUsed is returned when Build is called a second time.
	ErrBuilderUsed = errors.New("builder already used")
)

// ErrorKind classifies a lifecycle failure.
type ErrorKind int

const (
	// KindJWT is the generic failure kind.
	KindJWT ErrorKind = iota
	// KindInvalidClaim reports a claim value that violates its construction rule.
	KindInvalidClaim
	// KindTokenInvalid reports a malformed token or a failed verification rule.
	KindTokenInvalid
	// KindTokenExpired reports an expired token.
	KindTokenExpired
	// KindTokenBlacklisted reports a revoked token.
	KindTokenBlacklisted
)

var kindNames = [...]string{
	KindJWT:              "jwt",
	KindInvalidClaim:     "invalid_claim",
	KindTokenInvalid:     "token_invalid",
	KindTokenExpired:     "token_expired",
	KindTokenBlacklisted: "token_blacklisted",
}

var defaultMessages = [...]string{
	KindJWT:              "An error occurred",
	KindInvalidClaim:     "Invalid value provided for claim",
	KindTokenInvalid:     "The token is invalid",
	KindTokenExpired:     "The token has expired",
	KindTokenBlacklisted: "The token has been blacklisted",
}

// String returns a stable snake_case name, used as the audit error code.
func (k ErrorKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Error is the typed lifecycle failure. Message carries the human readable
// reason; Err, when set, is the collaborator failure that caused it.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = defaultMessages[e.Kind]
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying collaborator failure.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind and every sentinel above it.
// A blacklisted token is also an invalid token.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrJWT:
		return true
	case ErrInvalidClaim:
		return e.Kind == KindInvalidClaim
	case ErrTokenInvalid:
		return e.Kind == KindTokenInvalid || e.Kind == KindTokenBlacklisted
	case ErrTokenExpired:
		return e.Kind == KindTokenExpired
	case ErrTokenBlacklisted:
		return e.Kind == KindTokenBlacklisted
	}
	if t, ok := target.(*Error); ok {
		return t.Kind == e.Kind && t.Message == e.Message
	}
	return false
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func wrapError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func invalidClaim(name string) *Error {
	return newError(KindInvalidClaim, fmt.Sprintf("Invalid value provided for claim [%s]", name))
}
