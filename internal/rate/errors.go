package rate

import "errors"

var (
	// ErrRateLimited is returned once a subject exhausts its refresh budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis command failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
