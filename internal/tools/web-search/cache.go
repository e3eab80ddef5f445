package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var spaceRe = regexp.MustCompile(`\s+`)

// resultCache stores ranked search results in Redis.
type resultCache struct {
	client *redis.Client
	ttl    time.Duration
}

func cacheKey(query string, num int) string {
	q := spaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(query)), " ")
	return fmt.Sprintf("jobcrew:search:%d:%s", num, q)
}

func (c *resultCache) get(ctx context.Context, key string) ([]Source, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var sources []Source
	if err := json.Unmarshal([]byte(val), &sources); err != nil {
		return nil, false, err
	}
	return sources, true, nil
}

func (c *resultCache) set(ctx context.Context, key string, sources []Source) error {
	data, err := json.Marshal(sources)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}
