package middleware

import (
	"context"

	"doordb/message"

	"golang.org/x/time/rate"
)

// ErrRateLimited is the message sent back for queries over the limit.
const ErrRateLimited = "rate limit exceeded"

// RateLimit admits r queries per second with the given burst (token bucket).
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, q message.Query) message.Envelope {
			if !limiter.Allow() {
				return message.Fail(ErrRateLimited)
			}
			return next(ctx, q)
		}
	}
}
