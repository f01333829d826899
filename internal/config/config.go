package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config interface {
	EnvConfig
	CorsConfig
	StoreConfig
	OAuthConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetIssuer() string
	GetPathPrefix() string
	GetClientsSource() string
	GetClientsFile() string
	GetSigningKeyFile() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Store
	OAuth
	Security
}

// New loads the configuration from the process environment, reading an optional .env file first.
func New() (Config, error) {
	_ = godotenv.Load()

	cfg := &mainConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("[config.New] parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("[config.New] validating environment: %w", err)
	}
	return cfg, nil
}

func (c *mainConfig) validate() error {
	if c.Issuer == "" {
		return fmt.Errorf("PROVIDER is required")
	}
	switch c.ClientsSource {
	case ClientsSourceFile:
		if c.ClientsFile == "" {
			return fmt.Errorf("CLIENTS_FILE is required when CLIENTS_SOURCE=%s", ClientsSourceFile)
		}
	case ClientsSourceRedis:
	default:
		return fmt.Errorf("unknown CLIENTS_SOURCE %q", c.ClientsSource)
	}
	if c.AccessTokenTTLSeconds <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL must be positive")
	}
	if c.Argon2MemoryKiB < MinArgon2MemoryKiB || c.Argon2Iterations < MinArgon2Iterations || c.Argon2Parallelism < 1 {
		return fmt.Errorf("argon2 cost below the minimum of %d KiB, %d iterations", MinArgon2MemoryKiB, MinArgon2Iterations)
	}
	if c.DerivationWorkers < 1 {
		return fmt.Errorf("APIKEY_DERIVATION_WORKERS must be at least 1")
	}
	return nil
}
