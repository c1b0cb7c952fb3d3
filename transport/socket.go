package transport

import (
	"net"
	"time"

	"doordb/protocol"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultNetwork     = "unix"
	DefaultDialTimeout = 5 * time.Second
)

type SocketOptions struct {
	Network     string // "unix" (default) or any network net.Dial accepts
	CodecType   byte   // written into every request header
	Resolver    Resolver
	DialTimeout time.Duration
	CallTimeout time.Duration // 0 waits forever
	Heartbeat   time.Duration // 0 disables heartbeats
	Logger      *zap.Logger
}

type SocketOption func(*SocketOptions)

func defaultSocketOptions() SocketOptions {
	return SocketOptions{
		Network:     DefaultNetwork,
		CodecType:   protocol.CodecTypeCBOR,
		DialTimeout: DefaultDialTimeout,
		Logger:      zap.NewNop(),
	}
}

func WithNetwork(network string) SocketOption {
	return func(o *SocketOptions) {
		o.Network = network
	}
}

func WithCodecType(ct byte) SocketOption {
	return func(o *SocketOptions) {
		o.CodecType = ct
	}
}

// WithResolver makes Open resolve channel names instead of dialing them directly.
func WithResolver(r Resolver) SocketOption {
	return func(o *SocketOptions) {
		o.Resolver = r
	}
}

func WithDialTimeout(d time.Duration) SocketOption {
	return func(o *SocketOptions) {
		o.DialTimeout = d
	}
}

func WithCallTimeout(d time.Duration) SocketOption {
	return func(o *SocketOptions) {
		o.CallTimeout = d
	}
}

func WithHeartbeat(interval time.Duration) SocketOption {
	return func(o *SocketOptions) {
		o.Heartbeat = interval
	}
}

func WithLogger(l *zap.Logger) SocketOption {
	return func(o *SocketOptions) {
		if l != nil {
			o.Logger = l
		}
	}
}

// SocketTransport opens channels as stream connections. By default the channel
// name is the path of a Unix socket.
type SocketTransport struct {
	opts SocketOptions
}

func NewSocketTransport(opts ...SocketOption) *SocketTransport {
	o := defaultSocketOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &SocketTransport{opts: o}
}

// Open dials the channel and returns it as a *ClientTransport.
func (s *SocketTransport) Open(name string) (Channel, error) {
	addr := name
	if s.opts.Resolver != nil {
		var err error
		if addr, err = s.opts.Resolver.Resolve(name); err != nil {
			return nil, errors.Wrapf(err, "resolve %s", name)
		}
	}

	conn, err := net.DialTimeout(s.opts.Network, addr, s.opts.DialTimeout)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}
	s.opts.Logger.Debug("channel opened", zap.String("name", name), zap.String("addr", addr))
	return newClientTransport(conn, s.opts), nil
}
