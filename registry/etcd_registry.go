package registry

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const (
	DefaultPrefix         = "/doordb/"
	DefaultRequestTimeout = 5 * time.Second
)

// EtcdRegistry stores instances in etcd:
//
//	Key:   {prefix}{escaped channel name}/{addr}
//	Value: JSON-encoded Instance
//
// Registrations hold a TTL lease that is kept alive until Deregister or Close.
// If the server dies, the lease expires and the entry disappears.
type EtcdRegistry struct {
	client  *clientv3.Client
	prefix  string
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	alive map[string]context.CancelFunc // key → keepalive cancel
}

type EtcdOption func(*EtcdRegistry)

func WithPrefix(prefix string) EtcdOption {
	return func(r *EtcdRegistry) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

func WithLogger(l *zap.Logger) EtcdOption {
	return func(r *EtcdRegistry) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithRequestTimeout(d time.Duration) EtcdOption {
	return func(r *EtcdRegistry) {
		r.timeout = d
	}
}

// NewEtcdRegistry connects to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string, opts ...EtcdOption) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: DefaultRequestTimeout,
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect etcd")
	}
	r := &EtcdRegistry{
		client:  c,
		prefix:  DefaultPrefix,
		timeout: DefaultRequestTimeout,
		logger:  zap.NewNop(),
		alive:   make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *EtcdRegistry) dir(name string) string {
	return r.prefix + url.PathEscape(name) + "/"
}

func (r *EtcdRegistry) key(name, addr string) string {
	return r.dir(name) + url.PathEscape(addr)
}

// Register adds an instance under a lease of ttl seconds and keeps the lease alive.
func (r *EtcdRegistry) Register(name string, instance Instance, ttl int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return errors.Wrap(err, "grant lease")
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	key := r.key(name, instance.Addr)
	if _, err := r.client.Put(ctx, key, string(val), clientv3.WithLease(lease.ID)); err != nil {
		return errors.Wrapf(err, "put %s", key)
	}

	// The keepalive context outlives this call; Deregister or Close cancels it.
	kaCtx, kaCancel := context.WithCancel(context.Background())
	ch, err := r.client.KeepAlive(kaCtx, lease.ID)
	if err != nil {
		kaCancel()
		return errors.Wrap(err, "keep lease alive")
	}

	r.mu.Lock()
	if old, ok := r.alive[key]; ok {
		old()
	}
	r.alive[key] = kaCancel
	r.mu.Unlock()

	go func() {
		for range ch {
		}
		if kaCtx.Err() == nil {
			r.logger.Warn("registry lease lost", zap.String("key", key))
		}
	}()
	return nil
}

// Deregister removes an instance and stops renewing its lease.
func (r *EtcdRegistry) Deregister(name string, addr string) error {
	key := r.key(name, addr)

	r.mu.Lock()
	if cancel, ok := r.alive[key]; ok {
		cancel()
		delete(r.alive, key)
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if _, err := r.client.Delete(ctx, key); err != nil {
		return errors.Wrapf(err, "delete %s", key)
	}
	return nil
}

// Discover returns the instances currently registered under name.
// Malformed entries are skipped.
func (r *EtcdRegistry) Discover(name string) ([]Instance, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	resp, err := r.client.Get(ctx, r.dir(name), clientv3.WithPrefix())
	if err != nil {
		return nil, errors.Wrapf(err, "discover %s", name)
	}

	instances := make([]Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance Instance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			r.logger.Warn("skipping malformed registry entry", zap.ByteString("key", kv.Key), zap.Error(err))
			continue
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

// Close stops all keepalives and closes the etcd client.
func (r *EtcdRegistry) Close() error {
	r.mu.Lock()
	for key, cancel := range r.alive {
		cancel()
		delete(r.alive, key)
	}
	r.mu.Unlock()
	return r.client.Close()
}
