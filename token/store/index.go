package store

import (
	"context"

	errs "github.com/jrsteele09/go-tokenator/internal/errors"
	"github.com/redis/go-redis/v9"
)

// FindByUserCode resolves a device user code to its DeviceCode record.
func (s *Store) FindByUserCode(ctx context.Context, userCode string) (Payload, bool, error) {
	return s.findByIndex(ctx, "FindByUserCode", UserCodeKey(userCode), DeviceCode)
}

// FindBySessionUID resolves a session uid to its Session record.
func (s *Store) FindBySessionUID(ctx context.Context, uid string) (Payload, bool, error) {
	return s.findByIndex(ctx, "FindBySessionUID", SessionUIDKey(uid), Session)
}

// findByIndex follows a scalar index entry. The lookup misses when either the entry or the
// record it names is gone.
func (s *Store) findByIndex(ctx context.Context, op, indexKey string, kind Kind) (Payload, bool, error) {
	id, err := s.client.Get(ctx, s.key(indexKey)).Result()
	if errs.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storageError(op, err)
	}
	return s.Find(ctx, kind, id)
}
