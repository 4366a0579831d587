package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const stalenessKey = "crawl:last_completed_at"

// StalenessCache records when the most recent crawl finished, gzip-
// compressed in Redis the way the ESI market-data cache compresses its
// payloads, so repeated reads of /api/crawls/staleness don't hit Postgres.
type StalenessCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewStalenessCache builds a StalenessCache backed by an existing Redis
// client.
func NewStalenessCache(client *redis.Client, ttl time.Duration) *StalenessCache {
	return &StalenessCache{redis: client, ttl: ttl}
}

// RecordCrawlCompleted stores the time a crawl finished, to be read back by
// SecondsSinceLastCrawl.
func (c *StalenessCache) RecordCrawlCompleted(ctx context.Context, completedAt time.Time) error {
	data, err := json.Marshal(completedAt)
	if err != nil {
		return err
	}
	compressed, err := compress(data)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, stalenessKey, compressed, c.ttl).Err()
}

// SecondsSinceLastCrawl returns how long ago the last recorded crawl
// finished. found is false if no crawl has completed since the cache entry
// last expired.
func (c *StalenessCache) SecondsSinceLastCrawl(ctx context.Context) (float64, bool, error) {
	compressed, err := c.redis.Get(ctx, stalenessKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	data, err := decompress(compressed)
	if err != nil {
		return 0, false, err
	}

	var completedAt time.Time
	if err := json.Unmarshal(data, &completedAt); err != nil {
		return 0, false, err
	}

	return time.Since(completedAt).Seconds(), true, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	return io.ReadAll(gz)
}
