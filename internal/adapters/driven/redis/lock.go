package redis

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/pos-sync/internal/core/ports/driven"
)

var _ driven.DistributedLock = (*Lock)(nil)

const lockPrefix = "pos-sync:lock:"

// Lock coordinates drain cycles between terminals sharing one remote store.
// Each key holds the owner id of the terminal that took it and expires on
// its own, so a crashed terminal never wedges the others.
type Lock struct {
	client  *redis.Client
	ownerID string
}

func NewLock(client *redis.Client) *Lock {
	hostname, _ := os.Hostname()
	return &Lock{
		client:  client,
		ownerID: fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), uuid.NewString()),
	}
}

// acquireScript takes a free key, or refreshes the TTL of a key the caller
// already owns. Returns 1 when the caller holds the key afterwards.
var acquireScript = redis.NewScript(`
	local owner = redis.call("get", KEYS[1])
	if owner == ARGV[1] then
		redis.call("pexpire", KEYS[1], ARGV[2])
		return 1
	end
	if owner then
		return 0
	end
	redis.call("set", KEYS[1], ARGV[1], "PX", ARGV[2])
	return 1
`)

// ownedScript runs one command on the key only when the caller owns it.
// ARGV[2] selects del or pexpire.
var ownedScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) ~= ARGV[1] then
		return 0
	end
	if ARGV[2] == "del" then
		return redis.call("del", KEYS[1])
	end
	return redis.call("pexpire", KEYS[1], ARGV[3])
`)

func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	n, err := acquireScript.Run(ctx, l.client, []string{lockPrefix + name}, l.ownerID, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	return n == 1, nil
}

// Release is a no-op unless this terminal holds the lock.
func (l *Lock) Release(ctx context.Context, name string) error {
	if _, err := ownedScript.Run(ctx, l.client, []string{lockPrefix + name}, l.ownerID, "del").Int64(); err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

func (l *Lock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	n, err := ownedScript.Run(ctx, l.client, []string{lockPrefix + name}, l.ownerID, "pexpire", ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("lock %s not held by this terminal", name)
	}
	return nil
}

func (l *Lock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// OwnerID is the value stored under every key this terminal holds.
func (l *Lock) OwnerID() string {
	return l.ownerID
}
