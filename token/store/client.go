package store

import (
	"fmt"

	"github.com/jrsteele09/go-tokenator/internal/config"
	"github.com/redis/go-redis/v9"
)

// NewClient builds the redis client shared by every store user. It does not connect;
// the first command (or Ping) does.
func NewClient(cfg config.StoreConfig) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("[store.NewClient] parsing redis url: %w", err)
	}
	opts.DialTimeout = cfg.GetDialTimeout()
	opts.ReadTimeout = cfg.GetReadTimeout()
	opts.WriteTimeout = cfg.GetWriteTimeout()
	return redis.NewClient(opts), nil
}
