package server

import (
	"doordb/registry"

	"go.uber.org/zap"
)

const DefaultTTL int64 = 10

type Options struct {
	Logger *zap.Logger

	// Registry, when set, advertises Instance under Name while the server runs.
	Registry registry.Registry
	Name     string
	Instance registry.Instance
	TTL      int64 // lease seconds
}

type Option func(*Options)

func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithRegistry advertises instance under the channel name once serving starts and
// removes it on Shutdown.
func WithRegistry(reg registry.Registry, name string, instance registry.Instance) Option {
	return func(o *Options) {
		o.Registry = reg
		o.Name = name
		o.Instance = instance
	}
}

func WithTTL(ttl int64) Option {
	return func(o *Options) {
		o.TTL = ttl
	}
}
