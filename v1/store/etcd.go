package store

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	warperrors "github.com/mirkobrombin/go-warp-sync/v1/errors"
)

// Etcd implements Store on etcd. The CAS token is the key's mod revision and
// TTLs are implemented with leases, rounded up to whole seconds.
type Etcd struct {
	client *clientv3.Client
}

// NewEtcd returns a new etcd store using the provided client.
func NewEtcd(client *clientv3.Client) *Etcd {
	return &Etcd{client: client}
}

// putOptions grants a lease for ttl. The returned lease ID is zero when no
// lease was needed.
func (e *Etcd) putOptions(ctx context.Context, ttl time.Duration) ([]clientv3.OpOption, clientv3.LeaseID, error) {
	if ttl <= 0 {
		return nil, 0, nil
	}
	seconds := int64((ttl + time.Second - 1) / time.Second)
	lease, err := e.client.Grant(ctx, seconds)
	if err != nil {
		return nil, 0, err
	}
	return []clientv3.OpOption{clientv3.WithLease(lease.ID)}, lease.ID, nil
}

// revokeUnused drops a lease that ended up attached to nothing.
func (e *Etcd) revokeUnused(id clientv3.LeaseID) {
	if id == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, _ = e.client.Revoke(ctx, id)
}

// Get implements Store.Get.
func (e *Etcd) Get(ctx context.Context, key string) (Value, bool, error) {
	item, ok, err := e.GetForUpdate(ctx, key)
	return item.Value, ok, err
}

// GetForUpdate implements Store.GetForUpdate.
func (e *Etcd) GetForUpdate(ctx context.Context, key string) (Item, bool, error) {
	resp, err := e.client.Get(ctx, key)
	if err != nil {
		return Item{}, false, err
	}
	if len(resp.Kvs) == 0 {
		return Item{}, false, nil
	}
	kv := resp.Kvs[0]
	return Item{Key: key, Value: Parse(string(kv.Value)), token: kv.ModRevision}, true, nil
}

// Add implements Store.Add.
func (e *Etcd) Add(ctx context.Context, key string, value Value, ttl time.Duration) (bool, error) {
	opts, lease, err := e.putOptions(ctx, ttl)
	if err != nil {
		return false, err
	}
	resp, err := e.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, value.String(), opts...)).
		Commit()
	if err != nil {
		e.revokeUnused(lease)
		return false, err
	}
	if !resp.Succeeded {
		e.revokeUnused(lease)
	}
	return resp.Succeeded, nil
}

// CompareAndSwap implements Store.CompareAndSwap.
func (e *Etcd) CompareAndSwap(ctx context.Context, item Item, value Value, ttl time.Duration) (bool, error) {
	rev, ok := item.token.(int64)
	if !ok {
		return false, errForeignToken
	}
	opts, lease, err := e.putOptions(ctx, ttl)
	if err != nil {
		return false, err
	}
	resp, err := e.client.Txn(ctx).
		If(clientv3.Compare(clientv3.ModRevision(item.Key), "=", rev)).
		Then(clientv3.OpPut(item.Key, value.String(), opts...)).
		Commit()
	if err != nil {
		e.revokeUnused(lease)
		return false, err
	}
	if !resp.Succeeded {
		e.revokeUnused(lease)
	}
	return resp.Succeeded, nil
}

// Increment implements Store.Increment. etcd has no native increment, so the
// update is a revision guarded transaction repeated until it lands. The
// entry keeps its lease.
func (e *Etcd) Increment(ctx context.Context, key string, delta int64) (int64, bool, error) {
	for {
		item, ok, err := e.GetForUpdate(ctx, key)
		if err != nil || !ok {
			return 0, false, err
		}
		n, isInt := item.Value.Int()
		if !isInt {
			return 0, false, fmt.Errorf("%w: key %q holds a %s value", warperrors.ErrTypeCollision, key, item.Value.Kind())
		}
		n += delta
		resp, err := e.client.Txn(ctx).
			If(clientv3.Compare(clientv3.ModRevision(key), "=", item.token.(int64))).
			Then(clientv3.OpPut(key, Int(n).String(), clientv3.WithIgnoreLease())).
			Commit()
		if err != nil {
			return 0, false, err
		}
		if resp.Succeeded {
			return n, true, nil
		}
		if err := checkContext(ctx); err != nil {
			return 0, false, err
		}
	}
}

// Set implements Store.Set.
func (e *Etcd) Set(ctx context.Context, key string, value Value, ttl time.Duration) error {
	opts, lease, err := e.putOptions(ctx, ttl)
	if err != nil {
		return err
	}
	if _, err := e.client.Put(ctx, key, value.String(), opts...); err != nil {
		e.revokeUnused(lease)
		return err
	}
	return nil
}

// Delete implements Store.Delete.
func (e *Etcd) Delete(ctx context.Context, key string) error {
	_, err := e.client.Delete(ctx, key)
	return err
}
