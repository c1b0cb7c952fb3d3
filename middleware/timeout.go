package middleware

import (
	"context"
	"time"

	"doordb/message"
)

// ErrTimedOut is the message sent back when a handler outlives its timeout.
const ErrTimedOut = "request timed out"

// Timeout answers Fail(ErrTimedOut) if the handler has not returned within timeout.
// The handler's context is cancelled at that point.
func Timeout(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, q message.Query) message.Envelope {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan message.Envelope, 1)
			go func() {
				done <- next(ctx, q)
			}()

			select {
			case env := <-done:
				return env
			case <-ctx.Done():
				return message.Fail(ErrTimedOut)
			}
		}
	}
}
