package certificate

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"participation/internal/participation"
	id "participation/pkg/domain"
)

var cacheLookupDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "participation_certificate_cache_lookup_duration_ms",
	Help:    "Latency of certificate cache lookups in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

const certificateKeyPrefix = "cert:record:"

// Cache holds recently verified certificate records so the public verify
// endpoint does not hit the primary store on every lookup.
type Cache interface {
	Get(ctx context.Context, certificateID id.CertificateID) (*participation.CertificateRecord, error)
	Set(ctx context.Context, cert participation.CertificateRecord) error
	Invalidate(ctx context.Context, certificateID id.CertificateID) error
}

// RedisCache is the shared-state implementation for multi-instance
// deployments. TTL bounds how long a revocation can stay invisible to
// cached verifications, so keep it short.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Get returns the cached record, or nil on a miss.
func (c *RedisCache) Get(ctx context.Context, certificateID id.CertificateID) (*participation.CertificateRecord, error) {
	start := time.Now()
	defer func() {
		cacheLookupDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	raw, err := c.client.Get(ctx, certificateKeyPrefix+certificateID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cert participation.CertificateRecord
	if err := json.Unmarshal(raw, &cert); err != nil {
		return nil, err
	}
	return &cert, nil
}

func (c *RedisCache) Set(ctx context.Context, cert participation.CertificateRecord) error {
	raw, err := json.Marshal(cert)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, certificateKeyPrefix+cert.ID.String(), raw, c.ttl).Err()
}

// Invalidate drops the cached record, typically right after a revocation.
func (c *RedisCache) Invalidate(ctx context.Context, certificateID id.CertificateID) error {
	return c.client.Del(ctx, certificateKeyPrefix+certificateID.String()).Err()
}
