package server

import (
	"context"

	"doordb/message"
)

// Handler answers queries. A returned error is sent to the client as a server error
// carrying err.Error() verbatim.
//
// Serve is called from many goroutines at once.
type Handler interface {
	Serve(ctx context.Context, q message.Query) (message.Response, error)
}

type HandlerFunc func(ctx context.Context, q message.Query) (message.Response, error)

func (f HandlerFunc) Serve(ctx context.Context, q message.Query) (message.Response, error) {
	return f(ctx, q)
}
