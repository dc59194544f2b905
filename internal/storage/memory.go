package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

const (
	memoryLocalTTL     = 30 * time.Minute
	memoryRedisTimeout = 2 * time.Second
)

// TranslationMemory 两级译文缓存：进程内 L1 + Redis L2，键为 语言 + md5(原文)
type TranslationMemory struct {
	local *cache.Cache
	redis *redis.Client
	ttl   time.Duration
}

// NewTranslationMemory rdb 为 nil 时只使用进程内缓存
func NewTranslationMemory(rdb *redis.Client, ttl time.Duration) *TranslationMemory {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	localTTL := memoryLocalTTL
	if ttl < localTTL {
		localTTL = ttl
	}
	return &TranslationMemory{
		local: cache.New(localTTL, 10*time.Minute),
		redis: rdb,
		ttl:   ttl,
	}
}

// TranslationMemory 基于 Store 的 Redis 连接创建译文缓存
func (s *Store) TranslationMemory(ttl time.Duration) *TranslationMemory {
	return NewTranslationMemory(s.Redis, ttl)
}

func memoryKey(lang, text string) string {
	sum := md5.Sum([]byte(text))
	return "translation:" + lang + ":" + hex.EncodeToString(sum[:])
}

func (m *TranslationMemory) Get(lang, text string) (string, bool) {
	key := memoryKey(lang, text)
	if v, ok := m.local.Get(key); ok {
		if s, ok := v.(string); ok {
			return s, true
		}
	}
	if m.redis == nil {
		return "", false
	}

	ctx, cancel := context.WithTimeout(context.Background(), memoryRedisTimeout)
	defer cancel()
	s, err := m.redis.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	m.local.SetDefault(key, s)
	return s, true
}

func (m *TranslationMemory) Set(lang, text, translated string) {
	key := memoryKey(lang, text)
	m.local.SetDefault(key, translated)
	if m.redis == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), memoryRedisTimeout)
	defer cancel()
	_ = m.redis.Set(ctx, key, translated, m.ttl).Err()
}
