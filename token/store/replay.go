package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Unique records jti within namespace until expiresAt. It returns false when the pair has
// already been recorded and has not expired yet.
func (s *Store) Unique(ctx context.Context, namespace, jti string, expiresAt time.Time) (bool, error) {
	now := s.now()
	sum := sha256.Sum256([]byte(namespace + ":" + jti))
	id := hex.EncodeToString(sum[:])

	ttl := expiresAt.Sub(now)
	if ttl < time.Second {
		ttl = time.Second
	}
	data, err := json.Marshal(Payload{
		FieldJTI:      id,
		FieldKind:     string(ReplayDetection),
		FieldIssuedAt: now.Unix(),
		FieldExpires:  expiresAt.Unix(),
	})
	if err != nil {
		return false, fmt.Errorf("[store.Unique] encoding payload: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(RecordKey(ReplayDetection, id)), data, ttl).Result()
	if err != nil {
		return false, storageError("Unique", err)
	}
	return ok, nil
}
