package loadbalance

import (
	"doordb/registry"

	"github.com/pkg/errors"
)

// Resolver resolves channel names through a registry, picking one instance with a
// balancer. It satisfies transport.Resolver.
type Resolver struct {
	Registry registry.Registry
	Balancer Balancer
}

// NewResolver defaults to round robin when b is nil.
func NewResolver(reg registry.Registry, b Balancer) *Resolver {
	if b == nil {
		b = &RoundRobinBalancer{}
	}
	return &Resolver{Registry: reg, Balancer: b}
}

func (r *Resolver) Resolve(name string) (string, error) {
	instances, err := r.Registry.Discover(name)
	if err != nil {
		return "", err
	}
	inst, err := r.Balancer.Pick(instances)
	if err != nil {
		return "", errors.Wrapf(err, "resolve %s with %s", name, r.Balancer.Name())
	}
	return inst.Addr, nil
}
