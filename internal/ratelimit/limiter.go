package ratelimit

import "context"

// RateLimiter controls send throughput per delivery method so a burst of
// stage changes cannot flood an external gateway.
type RateLimiter interface {
	Allow(ctx context.Context, method string) (bool, error)
	Wait(ctx context.Context, method string) error
}
