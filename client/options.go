package client

import (
	"doordb/codec"
	"doordb/metrics"
	"doordb/transport"

	"go.uber.org/zap"
)

// DefaultEndpoint is the channel name of the local doordb service.
const DefaultEndpoint = "/tmp/doordb"

type Options struct {
	// Endpoint is the channel name Open and Dial pass to the transport.
	Endpoint string
	Codec    codec.Codec
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	// Socket holds extra options for the transport Dial builds.
	Socket []transport.SocketOption
}

type Option func(*Options)

func buildOptions(opts []Option) Options {
	o := Options{
		Endpoint: DefaultEndpoint,
		Codec:    &codec.CBORCodec{},
		Logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithEndpoint(name string) Option {
	return func(o *Options) {
		o.Endpoint = name
	}
}

// WithCodec selects the wire encoding. The server must speak the same one.
func WithCodec(c codec.Codec) Option {
	return func(o *Options) {
		if c != nil {
			o.Codec = c
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Options) {
		o.Metrics = m
	}
}

// WithSocketOptions passes options through to the socket transport Dial creates.
func WithSocketOptions(opts ...transport.SocketOption) Option {
	return func(o *Options) {
		o.Socket = append(o.Socket, opts...)
	}
}
