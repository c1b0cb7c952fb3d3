// Package registry lets servers advertise where a named doordb channel can be
// opened, and lets clients look it up.
package registry

// Instance is one server answering on a channel.
type Instance struct {
	Addr    string // dialable address: a socket path for "unix", host:port for "tcp"
	Weight  int    // relative share for weighted balancing
	Version string
}

type Registry interface {
	Register(name string, instance Instance, ttl int64) error
	Deregister(name string, addr string) error
	Discover(name string) ([]Instance, error)
}
