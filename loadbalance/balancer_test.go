package loadbalance

import (
	"errors"
	"testing"

	"doordb/registry"
	"doordb/transport"
)

var testInstances = []registry.Instance{
	{Addr: "/tmp/doordb-1.sock", Weight: 10, Version: "1.0"},
	{Addr: "/tmp/doordb-2.sock", Weight: 5, Version: "1.0"},
	{Addr: "/tmp/doordb-3.sock", Weight: 10, Version: "1.0"},
}

func TestRoundRobin(t *testing.T) {
	b := &RoundRobinBalancer{}

	for i := 0; i < 2*len(testInstances); i++ {
		inst, err := b.Pick(testInstances)
		if err != nil {
			t.Fatal(err)
		}
		want := testInstances[i%len(testInstances)].Addr
		if inst.Addr != want {
			t.Fatalf("pick %d: expect %s, got %s", i, want, inst.Addr)
		}
	}
}

func TestRoundRobinEmpty(t *testing.T) {
	b := &RoundRobinBalancer{}
	if _, err := b.Pick(nil); !errors.Is(err, ErrNoInstances) {
		t.Fatalf("expect ErrNoInstances, got %v", err)
	}
}

func TestWeightedRandom(t *testing.T) {
	b := &WeightedRandomBalancer{}

	counts := map[string]int{}
	n := 10000
	for i := 0; i < n; i++ {
		inst, err := b.Pick(testInstances)
		if err != nil {
			t.Fatal(err)
		}
		counts[inst.Addr]++
	}

	// Weights are 10:5:10, so instance 1 should be picked about twice as often as instance 2.
	ratio := float64(counts["/tmp/doordb-1.sock"]) / float64(counts["/tmp/doordb-2.sock"])
	if ratio < 1.5 || ratio > 2.5 {
		t.Fatalf("weight ratio = %.2f, expect ~2.0", ratio)
	}
}

func TestWeightedRandomZeroWeights(t *testing.T) {
	b := &WeightedRandomBalancer{}
	inst, err := b.Pick([]registry.Instance{{Addr: "a"}, {Addr: "b"}})
	if err != nil {
		t.Fatal(err)
	}
	if inst.Addr != "a" && inst.Addr != "b" {
		t.Fatalf("unexpected pick %s", inst.Addr)
	}
}

type fakeRegistry map[string][]registry.Instance

func (f fakeRegistry) Register(name string, instance registry.Instance, ttl int64) error {
	f[name] = append(f[name], instance)
	return nil
}

func (f fakeRegistry) Deregister(name string, addr string) error { return nil }

func (f fakeRegistry) Discover(name string) ([]registry.Instance, error) {
	return f[name], nil
}

func TestResolver(t *testing.T) {
	reg := fakeRegistry{"/tmp/doordb": testInstances[:2]}
	var r transport.Resolver = NewResolver(reg, nil)

	first, err := r.Resolve("/tmp/doordb")
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Resolve("/tmp/doordb")
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatalf("expect round robin over two instances, got %s twice", first)
	}

	if _, err := r.Resolve("/tmp/nothing"); !errors.Is(err, ErrNoInstances) {
		t.Fatalf("expect ErrNoInstances, got %v", err)
	}
}
