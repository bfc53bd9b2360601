// Package lock эксклюзивные метки "задача уже выполняется".
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/ignatzorin/translation-kpi/internal/logger"
	"github.com/ignatzorin/translation-kpi/internal/pkg/apperror"
)

// ReleaseFunc снимает захваченную блокировку.
type ReleaseFunc func()

// MemoryLocker блокировки в пределах одного процесса.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]memoryHold
	nowFn func() time.Time
}

type memoryHold struct {
	token   string
	expires time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]memoryHold), nowFn: time.Now}
}

// Acquire захватывает ключ на ttl. Занятый ключ даёт ErrGenerationInProgress.
func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	if hold, ok := l.held[key]; ok && now.Before(hold.expires) {
		return nil, apperror.ErrGenerationInProgress
	}
	token := uuid.NewString()
	l.held[key] = memoryHold{token: token, expires: now.Add(ttl)}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			// после истечения ttl ключ мог перейти к другому владельцу
			if hold, ok := l.held[key]; ok && hold.token == token {
				delete(l.held, key)
			}
		})
	}, nil
}

// releaseScript удаляет ключ, только если он всё ещё принадлежит владельцу.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker блокировки, общие для всех экземпляров сервиса.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client, prefix: "lock:"}
}

// NewRedisClient разбирает REDIS_URL и проверяет соединение.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error) {
	token := uuid.NewString()
	redisKey := l.prefix + key

	ok, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось захватить блокировку")
	}
	if !ok {
		return nil, apperror.ErrGenerationInProgress
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// контекст запроса к этому моменту может быть отменён
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil && err != redis.Nil {
				logger.Log.WithError(err).WithField("lock", redisKey).Warn("не удалось снять блокировку")
			}
		})
	}, nil
}
