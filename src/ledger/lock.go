package ledger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/utils"
)

// Locker serializes the single-writer submission path. A held lock means
// another submission is in flight; callers fail fast instead of queueing.
type Locker interface {
	Lock(ctx context.Context) (release func(), err error)
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker is a token-fenced redis mutex guarding ledger submissions
// across prover instances.
type RedisLocker struct {
	client *redis.Client
	key    string
	expiry time.Duration
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		client: client,
		key:    utils.SubmitterLockKey,
		expiry: utils.SubmitterLockExpiry * time.Second,
	}
}

func (l *RedisLocker) Lock(ctx context.Context) (func(), error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	token := hex.EncodeToString(buf)

	ok, err := l.client.SetNX(ctx, l.key, token, l.expiry).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("submitter lock %s is held", l.key)
	}
	release := func() {
		// Only the holder's token releases; an expired-and-reacquired lock
		// is left alone.
		releaseScript.Run(context.Background(), l.client, []string{l.key}, token)
	}
	return release, nil
}

// NoopLocker serves single-process deployments and tests.
type NoopLocker struct{}

func (NoopLocker) Lock(context.Context) (func(), error) {
	return func() {}, nil
}
