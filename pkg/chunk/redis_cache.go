// pkg/chunk/redis_cache.go

package chunk

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// redisCache is an optional shared cache tier, useful when several
// long-lived processes page through the same remote data file.
type redisCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func newRedisCache(url, source string, ttl time.Duration) (*redisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.WithMessagef(err, "parse %s", url)
	}
	rdb := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
	defer cancel()
	if err = rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.WithMessagef(err, "ping %s", opt.Addr)
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(source))
	return &redisCache{
		rdb:    rdb,
		prefix: fmt.Sprintf("njc:%08x:", h.Sum32()),
		ttl:    ttl,
	}, nil
}

func (c *redisCache) key(id int64) string {
	return fmt.Sprintf("%s%d", c.prefix, id)
}

func (c *redisCache) load(ctx context.Context, id int64) *Page {
	data, err := c.rdb.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warnf("redis get chunk %d: %s", id, err)
		}
		return nil
	}
	return NewPage(data)
}

func (c *redisCache) save(ctx context.Context, id int64, p *Page) {
	if err := c.rdb.Set(ctx, c.key(id), p.Data, c.ttl).Err(); err != nil {
		logger.Warnf("redis set chunk %d: %s", id, err)
	}
}

func (c *redisCache) close() error {
	return c.rdb.Close()
}
