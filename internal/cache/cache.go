// Package cache wraps Redis for the JSON get/set/delete surface the
// recommendation core treats as best-effort: any error degrades to a miss.
package cache

import (
	"bytes"
	"compress/flate"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// compressThreshold is the payload size above which values are deflated
// before being written. No library in the retrieved stack specialises in
// deflate, so this one spot uses stdlib compress/flate directly.
const compressThreshold = 4096

const compressedPrefix = "\x01DEFLATE:"

// Cache is a thin, best-effort JSON cache over Redis.
type Cache struct {
	client *redis.Client
	log    *zap.Logger

	healthMu  sync.RWMutex
	isHealthy bool

	stopHealthCheck chan struct{}
}

// New dials redisURL (a redis://host:port/db DSN) and starts a background
// health-check ticker, mirroring the teacher's RedisDB without its
// connection-leak detector, which has no equivalent concern here.
func New(ctx context.Context, redisURL string, log *zap.Logger) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, err
	}

	c := &Cache{
		client:          client,
		log:             log,
		isHealthy:       true,
		stopHealthCheck: make(chan struct{}),
	}
	c.startHealthCheck(30 * time.Second)
	return c, nil
}

// NewForTest wraps an already-constructed redis client without dialing or
// starting the health-check loop, for callers (e.g. redismock) that need a
// *Cache without a live server.
func NewForTest(client *redis.Client, log *zap.Logger) *Cache {
	return &Cache{
		client:          client,
		log:             log,
		isHealthy:       true,
		stopHealthCheck: make(chan struct{}),
	}
}

func (c *Cache) startHealthCheck(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				c.performHealthCheck()
			case <-c.stopHealthCheck:
				ticker.Stop()
				return
			}
		}
	}()
}

func (c *Cache) performHealthCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.healthMu.Lock()
	defer c.healthMu.Unlock()

	if err := c.client.Ping(ctx).Err(); err != nil {
		if c.isHealthy {
			c.log.Warn("cache health check failed", zap.Error(err))
		}
		c.isHealthy = false
		return
	}
	if !c.isHealthy {
		c.log.Info("cache connection restored")
	}
	c.isHealthy = true
}

// Close stops the health-check loop and closes the underlying client.
func (c *Cache) Close() error {
	close(c.stopHealthCheck)
	return c.client.Close()
}

// GetJSON reads key and unmarshals it into dest. Returns false on a
// miss or any error — callers treat both identically per §5.
func (c *Cache) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	raw, err = maybeDecompress(raw)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false
	}
	return true
}

// SetJSON marshals value and writes it with the given TTL, compressing the
// payload above compressThreshold. Any failure is swallowed and reported
// as false; the spec treats cache writes as best-effort.
func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) bool {
	raw, err := json.Marshal(value)
	if err != nil {
		c.log.Debug("cache marshal failed", zap.String("key", key), zap.Error(err))
		return false
	}
	raw, err = maybeCompress(raw)
	if err != nil {
		c.log.Debug("cache compress failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.log.Debug("cache set failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Delete removes a single key, returning the count removed.
func (c *Cache) Delete(ctx context.Context, key string) int {
	n, err := c.client.Del(ctx, key).Result()
	if err != nil {
		return 0
	}
	return int(n)
}

// DeleteByPattern scans for keys matching pattern and deletes them in
// batches, returning the total removed.
func (c *Cache) DeleteByPattern(ctx context.Context, pattern string) int {
	var cursor uint64
	var removed int
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return removed
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err == nil {
				removed += int(n)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return removed
}

func maybeCompress(raw []byte) ([]byte, error) {
	if len(raw) < compressThreshold {
		return raw, nil
	}
	var buf bytes.Buffer
	buf.WriteString(compressedPrefix)
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func maybeDecompress(raw []byte) ([]byte, error) {
	prefix := []byte(compressedPrefix)
	if len(raw) < len(prefix) || !bytes.Equal(raw[:len(prefix)], prefix) {
		return raw, nil
	}
	r := flate.NewReader(bytes.NewReader(raw[len(prefix):]))
	defer r.Close()
	return io.ReadAll(r)
}
