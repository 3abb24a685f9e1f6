package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/pharmalytics/internal/analytics"
	"github.com/andresuchdata/pharmalytics/internal/config"
	"github.com/andresuchdata/pharmalytics/internal/domain"
)

const (
	resultKeyPrefix     = "analysis:result"
	resultScanBatchSize = 100
)

// ResultCache stores analysis results keyed by dataset and options fingerprint.
type ResultCache interface {
	Get(ctx context.Context, fingerprint string) (*domain.AnalysisResult, bool, error)
	Set(ctx context.Context, fingerprint string, result *domain.AnalysisResult) error
	InvalidateAll(ctx context.Context) error
}

type redisResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopResultCache struct{}

func NewResultCache(cfg config.CacheConfig) (ResultCache, error) {
	if !cfg.Enabled {
		return &noopResultCache{}, nil
	}

	client, err := newRedisClient(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	return &redisResultCache{
		client: client,
		ttl:    resultTTL(cfg),
	}, nil
}

func NewNoopResultCache() ResultCache {
	return &noopResultCache{}
}

func (c *redisResultCache) Get(ctx context.Context, fingerprint string) (*domain.AnalysisResult, bool, error) {
	payload, err := c.client.Get(ctx, buildResultKey(fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var result domain.AnalysisResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, false, fmt.Errorf("decode analysis result cache: %w", err)
	}

	return &result, true, nil
}

func (c *redisResultCache) Set(ctx context.Context, fingerprint string, result *domain.AnalysisResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode analysis result cache: %w", err)
	}

	if err := c.client.Set(ctx, buildResultKey(fingerprint), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisResultCache) InvalidateAll(ctx context.Context) error {
	removed, err := purgePrefix(ctx, c.client, resultKeyPrefix, resultScanBatchSize)
	if err != nil {
		return err
	}
	log.Info().Int("keys", removed).Msg("cache: analysis results invalidated")
	return nil
}

func (n *noopResultCache) Get(ctx context.Context, fingerprint string) (*domain.AnalysisResult, bool, error) {
	return nil, false, nil
}

func (n *noopResultCache) Set(ctx context.Context, fingerprint string, result *domain.AnalysisResult) error {
	return nil
}

func (n *noopResultCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func buildResultKey(fingerprint string) string {
	return fmt.Sprintf("%s:%s", resultKeyPrefix, fingerprint)
}

// Fingerprint hashes the dataset records and effective options. Equal inputs
// always produce equal results, so the hash is a safe cache key.
func Fingerprint(ds *domain.Dataset, opts analytics.Options) (string, error) {
	h := sha1.New()
	enc := json.NewEncoder(h)

	if err := enc.Encode(opts.AsMap()); err != nil {
		return "", fmt.Errorf("encode options: %w", err)
	}
	if err := enc.Encode(ds.Meta().DroppedRows); err != nil {
		return "", fmt.Errorf("encode dataset meta: %w", err)
	}
	for _, r := range ds.Records() {
		if err := enc.Encode(r); err != nil {
			return "", fmt.Errorf("encode record: %w", err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
