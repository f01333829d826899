package config

import "time"

// Lowest accepted argon2id cost.
const (
	MinArgon2MemoryKiB  = 64 * 1024
	MinArgon2Iterations = 3
)

type SecurityConfig interface {
	GetArgon2MemoryKiB() uint32
	GetArgon2Iterations() uint32
	GetArgon2Parallelism() uint8
	GetDerivationWorkers() int
	GetMinVerifyDuration() time.Duration
}

type Security struct {
	Argon2MemoryKiB   uint32        `env:"APIKEY_ARGON2_MEMORY_KIB" envDefault:"65536"`
	Argon2Iterations  uint32        `env:"APIKEY_ARGON2_ITERATIONS" envDefault:"3"`
	Argon2Parallelism uint8         `env:"APIKEY_ARGON2_PARALLELISM" envDefault:"1"`
	DerivationWorkers int           `env:"APIKEY_DERIVATION_WORKERS" envDefault:"2"`
	MinVerifyDuration time.Duration `env:"APIKEY_MIN_VERIFY_DURATION" envDefault:"50ms"`
}

var _ SecurityConfig = Security{}

func (s Security) GetArgon2MemoryKiB() uint32 {
	return s.Argon2MemoryKiB
}

func (s Security) GetArgon2Iterations() uint32 {
	return s.Argon2Iterations
}

func (s Security) GetArgon2Parallelism() uint8 {
	return s.Argon2Parallelism
}

func (s Security) GetDerivationWorkers() int {
	return s.DerivationWorkers
}

func (s Security) GetMinVerifyDuration() time.Duration {
	return s.MinVerifyDuration
}
