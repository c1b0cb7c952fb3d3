// Package transport is the port between the doordb client and whatever carries its
// bytes to the service.
//
// The client needs exactly two things from a transport: open a channel by name, and
// perform one blocking call on it that sends a request buffer and returns the
// response buffer. Framing below that is the transport's business.
//
//	client ──Open("/tmp/doordb")──→ Transport ──→ Channel
//	client ──Call(query bytes)────→ Channel   ──→ envelope bytes
//
// The socket implementation (SocketTransport, ClientTransport) carries calls over a
// Unix stream connection; ChannelFunc and TransportFunc adapt plain functions.
package transport

import "errors"

var (
	// ErrClosed is returned by calls on a channel that has been closed.
	ErrClosed = errors.New("transport: channel closed")
	// ErrTimeout is returned when a call outlives the configured call timeout.
	ErrTimeout = errors.New("transport: call timed out")
)

// Transport opens named channels.
type Transport interface {
	Open(name string) (Channel, error)
}

// Channel performs calls on an open channel.
//
// Implementations document whether Call may be used from several goroutines at
// once. A caller that cannot rely on that must serialize its calls.
type Channel interface {
	// Call sends one request buffer and blocks until its response buffer arrives.
	Call(req []byte) ([]byte, error)
	Close() error
}

// Resolver maps a channel name to the address a transport dials.
type Resolver interface {
	Resolve(name string) (string, error)
}

// ChannelFunc adapts a function to a Channel. Close is a no-op.
// It is safe for concurrent use if the function is.
type ChannelFunc func(req []byte) ([]byte, error)

func (f ChannelFunc) Call(req []byte) ([]byte, error) {
	return f(req)
}

func (f ChannelFunc) Close() error {
	return nil
}

// TransportFunc adapts a function to a Transport.
type TransportFunc func(name string) (Channel, error)

func (f TransportFunc) Open(name string) (Channel, error) {
	return f(name)
}
