package apikey

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"time"

	errs "github.com/jrsteele09/go-tokenator/internal/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/semaphore"
)

// KeyLength is the size of a derived key in bytes.
const KeyLength = 32

// CostParams are the argon2id cost parameters.
type CostParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
}

// MinimumCost is the lowest cost a Verifier accepts: 64 MiB, 3 passes, one lane.
var MinimumCost = CostParams{MemoryKiB: 64 * 1024, Iterations: 3, Parallelism: 1}

// DeriveKey runs argon2id over password and salt.
func DeriveKey(password, salt []byte, cost CostParams) []byte {
	return argon2.IDKey(password, salt, cost.Iterations, cost.MemoryKiB, cost.Parallelism, KeyLength)
}

// Verifier checks presented client secrets against stored derived keys. Derivations run on
// a bounded number of slots so concurrent authentications cannot exhaust memory.
type Verifier struct {
	cost        CostParams
	slots       *semaphore.Weighted
	minDuration time.Duration
}

func NewVerifier(cost CostParams, workers int, minDuration time.Duration) (*Verifier, error) {
	if cost.MemoryKiB < MinimumCost.MemoryKiB || cost.Iterations < MinimumCost.Iterations || cost.Parallelism < 1 {
		return nil, fmt.Errorf("[NewVerifier] argon2 cost %+v is below the minimum %+v", cost, MinimumCost)
	}
	if workers < 1 {
		return nil, fmt.Errorf("[NewVerifier] at least one derivation worker is required")
	}
	return &Verifier{
		cost:        cost,
		slots:       semaphore.NewWeighted(int64(workers)),
		minDuration: minDuration,
	}, nil
}

// Derive computes the derived key for password and salt once a derivation slot is free.
func (v *Verifier) Derive(ctx context.Context, password, salt []byte) ([]byte, error) {
	if err := v.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for a derivation slot: %w", err)
	}
	defer v.slots.Release(1)
	return DeriveKey(password, salt, v.cost), nil
}

// StoredKey returns the value to persist for a client secret: the base64url derived key.
func (v *Verifier) StoredKey(ctx context.Context, secret *Secret) (string, error) {
	if secret.Algorithm != AlgorithmArgon2id {
		return "", fmt.Errorf("%w: unsupported algorithm %q", errs.ErrMalformedSecret, secret.Algorithm)
	}
	key, err := v.Derive(ctx, secret.Password, secret.Salt)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(key), nil
}

// Verify reports whether presentedSecret derives to storedDerivedKey. A mismatch is false with
// a nil error; only malformed input or a cancelled context is an error. The call never returns
// sooner than the configured minimum duration.
func (v *Verifier) Verify(ctx context.Context, storedDerivedKey, presentedSecret string) (bool, error) {
	start := time.Now()
	defer v.pad(ctx, start)

	secret, err := DecodeSecret(presentedSecret)
	if err != nil {
		return false, err
	}
	if secret.Algorithm != AlgorithmArgon2id {
		return false, fmt.Errorf("%w: unsupported algorithm %q", errs.ErrMalformedSecret, secret.Algorithm)
	}
	stored, err := decodeBase64(storedDerivedKey)
	if err != nil {
		return false, fmt.Errorf("stored derived key is not base64: %w", err)
	}
	derived, err := v.Derive(ctx, secret.Password, secret.Salt)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(stored, derived) == 1, nil
}

func (v *Verifier) pad(ctx context.Context, start time.Time) {
	remaining := v.minDuration - time.Since(start)
	if remaining <= 0 {
		return
	}
	t := time.NewTimer(remaining)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
