package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/LJTian/TrendingRelay/internal/logging"
)

// 只删除自己持有的锁，避免锁过期后误删其他进程的锁
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireRunLock 用 SETNX 抢占跨进程的运行锁；ok=false 表示锁被其他进程持有
// 未配置 Redis 时总是成功，单进程由调度器自身保证不重入
func (s *Store) AcquireRunLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error) {
	if s.Redis == nil {
		return func() {}, true, nil
	}

	token := uuid.NewString()
	ok, err = s.Redis.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release = func() {
		rctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := releaseLockScript.Run(rctx, s.Redis, []string{key}, token).Err(); err != nil {
			logging.L().Warnf("release lock %s: %v", key, err)
		}
	}
	return release, true, nil
}
