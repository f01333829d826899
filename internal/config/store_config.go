package config

import "time"

type StoreConfig interface {
	GetRedisURL() string
	GetKeyPrefix() string
	GetDialTimeout() time.Duration
	GetReadTimeout() time.Duration
	GetWriteTimeout() time.Duration
}

type Store struct {
	RedisURL     string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	KeyPrefix    string        `env:"REDIS_KEY_PREFIX" envDefault:"tokenator:oidc:"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

var _ StoreConfig = Store{}

func (s Store) GetRedisURL() string {
	return s.RedisURL
}

func (s Store) GetKeyPrefix() string {
	return s.KeyPrefix
}

func (s Store) GetDialTimeout() time.Duration {
	return s.DialTimeout
}

func (s Store) GetReadTimeout() time.Duration {
	return s.ReadTimeout
}

func (s Store) GetWriteTimeout() time.Duration {
	return s.WriteTimeout
}
