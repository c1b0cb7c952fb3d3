// Package loadbalance chooses which registered instance a client opens its
// channel to.
//
//   - RoundRobin:     spread successive opens evenly
//   - WeightedRandom: favour instances by Instance.Weight
package loadbalance

import (
	"errors"

	"doordb/registry"
)

// ErrNoInstances is returned when a name has no registered instance.
var ErrNoInstances = errors.New("loadbalance: no instances available")

// Balancer picks one instance. Pick must be safe for concurrent use.
type Balancer interface {
	Pick(instances []registry.Instance) (*registry.Instance, error)
	Name() string
}
