// Package cache provides a Redis-backed cache for analysis results. Only
// the stateless dry-run path is cached: pseudonymization itself mutates
// session mapping state and must always run through the engine.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/rebeccahihi/pseudo/internal/config"
	"github.com/rebeccahihi/pseudo/internal/entity"
)

// ResultCache handles Redis-based caching of entity analysis results.
type ResultCache struct {
	client *redis.Client
	config config.CacheConfig
	logger *zap.Logger
	stats  *cacheStats
}

// cacheStats tracks cache performance metrics
type cacheStats struct {
	hits   int64
	misses int64
}

// CachedAnalysis is the stored payload for one analyzed text.
type CachedAnalysis struct {
	Entities []entity.ResolvedEntity `json:"entities"`
	CachedAt time.Time               `json:"cached_at"`
}

// Stats represents cache performance statistics.
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRate   float64 `json:"hit_rate"`
	TotalKeys int64   `json:"total_keys"`
}

// New creates a Redis-backed result cache and verifies connectivity.
func New(cfg config.CacheConfig, logger *zap.Logger) (*ResultCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = cfg.MaxConnections
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	rc := &ResultCache{
		client: client,
		config: cfg,
		logger: logger,
		stats:  &cacheStats{},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Result cache initialized",
		zap.String("redis_url", maskRedisURL(cfg.RedisURL)),
		zap.Int("max_connections", cfg.MaxConnections),
		zap.Duration("default_ttl", cfg.DefaultTTL))

	return rc, nil
}

// Get returns the cached analysis for (configFingerprint, text), or a miss.
// Lookup failures degrade to a miss so Redis outages never block analysis.
func (rc *ResultCache) Get(ctx context.Context, configFingerprint, text string) (*CachedAnalysis, bool) {
	key := rc.key(configFingerprint, text)

	data, err := rc.client.Get(ctx, key).Result()
	if err == redis.Nil {
		rc.stats.misses++
		rc.logger.Debug("Cache miss", zap.String("key", key))
		return nil, false
	} else if err != nil {
		rc.logger.Error("Cache lookup failed", zap.Error(err))
		return nil, false
	}

	var cached CachedAnalysis
	if err := json.Unmarshal([]byte(data), &cached); err != nil {
		rc.logger.Error("Failed to unmarshal cached analysis", zap.Error(err))
		rc.client.Del(ctx, key)
		return nil, false
	}

	rc.stats.hits++
	rc.logger.Debug("Cache hit", zap.String("key", key))
	return &cached, true
}

// Store caches an analysis result with the configured TTL.
func (rc *ResultCache) Store(ctx context.Context, configFingerprint, text string, entities []entity.ResolvedEntity) error {
	cached := CachedAnalysis{Entities: entities, CachedAt: time.Now()}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis for caching: %w", err)
	}

	key := rc.key(configFingerprint, text)
	if err := rc.client.Set(ctx, key, data, rc.config.DefaultTTL).Err(); err != nil {
		rc.logger.Error("Failed to cache analysis", zap.Error(err))
		return fmt.Errorf("failed to cache analysis: %w", err)
	}

	rc.logger.Debug("Analysis cached", zap.String("key", key), zap.Int("entities", len(entities)))
	return nil
}

// GetStats returns cache performance statistics.
func (rc *ResultCache) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Hits:   rc.stats.hits,
		Misses: rc.stats.misses,
	}

	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}

	keys, err := rc.client.DBSize(ctx).Result()
	if err == nil {
		stats.TotalKeys = keys
	}

	return stats, nil
}

// Clear removes every cached analysis under this cache's key prefix.
func (rc *ResultCache) Clear(ctx context.Context) error {
	pattern := rc.config.KeyPrefix + ":*"

	iter := rc.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	batchSize := 100
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := rc.client.Del(ctx, keys[i:end]...).Err(); err != nil {
			rc.logger.Error("Failed to delete cache keys", zap.Error(err))
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	rc.logger.Info("Cache cleared", zap.Int("deleted_keys", len(keys)))
	return nil
}

// Close closes the Redis connection
func (rc *ResultCache) Close() error {
	if rc.client != nil {
		return rc.client.Close()
	}
	return nil
}

// key hashes the configuration fingerprint and the document text into a
// fixed-size cache key. Document text never appears in Redis keys.
func (rc *ResultCache) key(configFingerprint, text string) string {
	hasher := sha256.New()
	hasher.Write([]byte(configFingerprint))
	hasher.Write([]byte{0})
	hasher.Write([]byte(text))
	hash := hex.EncodeToString(hasher.Sum(nil))
	return fmt.Sprintf("%s:analysis:%s", rc.config.KeyPrefix, hash[:32])
}

// maskRedisURL masks sensitive information in Redis URL for logging
func maskRedisURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
