// Package middleware wraps the server's query handler.
//
// Middlewares compose like an onion: Chain(A, B)(h) runs A's before-part, then B's,
// then h, then B's after-part and A's.
package middleware

import (
	"context"

	"doordb/message"
)

// HandlerFunc answers one decoded query with the envelope to send back.
type HandlerFunc func(ctx context.Context, q message.Query) message.Envelope

type Middleware func(next HandlerFunc) HandlerFunc

// Chain combines middlewares into one; the first one given runs outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
