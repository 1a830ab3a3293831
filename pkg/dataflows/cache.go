package dataflows

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores provider responses keyed by source, method and the call
// parameters.
type Cache interface {
	Get(ctx context.Context, source, method string, params any, result any) bool
	Set(ctx context.Context, source, method string, params any, data any) error
}

func cacheKey(source, method string, params any) string {
	data, _ := json.Marshal(params)
	hash := md5.Sum(data)
	return fmt.Sprintf("%s_%s_%x", source, method, hash)
}

// NewCache builds the cache selected by the config. A disabled cache is a
// no-op.
func NewCache(cfg *Config) (Cache, error) {
	if !cfg.CacheEnabled {
		return NopCache{}, nil
	}
	switch strings.ToLower(cfg.CacheBackend) {
	case "", "file":
		return NewCacheManager(cfg.DataCacheDir, cfg.CacheTTL(), true), nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return NewRedisCache(client, "cortex:", cfg.CacheTTL()), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

type NopCache struct{}

func (NopCache) Get(context.Context, string, string, any, any) bool  { return false }
func (NopCache) Set(context.Context, string, string, any, any) error { return nil }

// CacheManager handles file-based caching for data
type CacheManager struct {
	cacheDir     string
	ttl          time.Duration
	cacheEnabled bool
}

// NewCacheManager creates a new cache manager
func NewCacheManager(cacheDir string, ttl time.Duration, cacheEnabled bool) *CacheManager {
	return &CacheManager{
		cacheDir:     cacheDir,
		ttl:          ttl,
		cacheEnabled: cacheEnabled,
	}
}

// Get retrieves data from cache if not expired
func (cm *CacheManager) Get(_ context.Context, source, method string, params any, result any) bool {
	if !cm.cacheEnabled {
		return false
	}

	filePath := filepath.Join(cm.cacheDir, cacheKey(source, method, params)+".json")

	info, err := os.Stat(filePath)
	if err != nil {
		return false
	}
	if cm.ttl > 0 && time.Since(info.ModTime()) > cm.ttl {
		_ = os.Remove(filePath)
		return false
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, result) == nil
}

// Set stores data in cache
func (cm *CacheManager) Set(_ context.Context, source, method string, params any, data any) error {
	if !cm.cacheEnabled {
		return nil
	}
	if err := os.MkdirAll(cm.cacheDir, 0o755); err != nil {
		return err
	}
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	filePath := filepath.Join(cm.cacheDir, cacheKey(source, method, params)+".json")
	return os.WriteFile(filePath, jsonData, 0o644)
}

// RedisCache shares provider responses between processes.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (rc *RedisCache) Get(ctx context.Context, source, method string, params any, result any) bool {
	data, err := rc.client.Get(ctx, rc.prefix+cacheKey(source, method, params)).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, result) == nil
}

func (rc *RedisCache) Set(ctx context.Context, source, method string, params any, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return rc.client.Set(ctx, rc.prefix+cacheKey(source, method, params), payload, rc.ttl).Err()
}

// Ping checks the redis connection.
func (rc *RedisCache) Ping(ctx context.Context) error {
	if err := rc.client.Ping(ctx).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
