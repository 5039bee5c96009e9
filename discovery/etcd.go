// Package discovery registers the unit in etcd so supervisors can find its
// heartbeat address without static configuration.
package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// Prefix is the etcd key prefix under which units register.
const Prefix = "/izzy/units/"

func NewClient(endpoints []string) (*clientv3.Client, error) {
	return clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
}

// Key is the registration key for unit id.
func Key(id string) string { return Prefix + id }

// UnitID extracts the unit id from a registration key.
func UnitID(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, Prefix)
	return id, ok && id != ""
}

// RegisterUnit puts addr under the unit's key with a lease of ttl seconds and
// keeps the lease alive until the returned cancel func is called.
func RegisterUnit(ctx context.Context, cli *clientv3.Client, id, addr string, ttl int64) (clientv3.LeaseID, context.CancelFunc, error) {
	lease, err := cli.Grant(ctx, ttl)
	if err != nil {
		return 0, nil, fmt.Errorf("grant lease: %w", err)
	}
	if _, err := cli.Put(ctx, Key(id), addr, clientv3.WithLease(lease.ID)); err != nil {
		return 0, nil, fmt.Errorf("put %s: %w", Key(id), err)
	}

	kctx, cancel := context.WithCancel(context.Background())
	ch, err := cli.KeepAlive(kctx, lease.ID)
	if err != nil {
		cancel()
		return 0, nil, fmt.Errorf("keepalive: %w", err)
	}
	// drain responses so the client does not log a full channel
	go func() {
		for range ch {
		}
	}()
	return lease.ID, cancel, nil
}

// Units lists registered units as id -> heartbeat address.
func Units(ctx context.Context, cli *clientv3.Client) (map[string]string, error) {
	resp, err := cli.Get(ctx, Prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		if id, ok := UnitID(string(kv.Key)); ok {
			out[id] = string(kv.Value)
		}
	}
	return out, nil
}
