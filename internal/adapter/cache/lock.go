package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out best-effort exclusive leases on keys.
type Locker struct {
	rdb    lockClient
	prefix string
}

// lockClient is satisfied by *redis.Client.
type lockClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

func NewLocker(rdb lockClient) *Locker {
	return &Locker{rdb: rdb, prefix: "genstudio:lock:"}
}

// TryLock acquires key for ttl. ok is false when someone else holds it. The
// returned release is safe to call after the lease expired.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error) {
	token := uuid.NewString()
	full := l.prefix + key
	ok, err = l.rdb.SetNX(ctx, full, token, ttl).Result()
	if err != nil || !ok {
		return func() {}, false, err
	}
	return func() {
		// detached so a cancelled request still frees the lease
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.rdb, []string{full}, token).Err()
	}, true, nil
}
