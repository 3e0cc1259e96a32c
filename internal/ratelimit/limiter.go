package ratelimit

import "context"

// RateLimiter bounds outbound send throughput per channel. Wait blocks until
// a slot is available or the context is done.
type RateLimiter interface {
	Allow(ctx context.Context, channel string) (bool, error)
	Wait(ctx context.Context, channel string) error
}
