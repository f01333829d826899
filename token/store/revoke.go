package store

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RevokeByGrantID deletes every record listed under a grant and the list itself.
// The list is read under WATCH, so the delete covers exactly the keys that were read;
// a token appended concurrently restarts the transaction.
func (s *Store) RevokeByGrantID(ctx context.Context, grantID string) error {
	grantKey := GrantKey(grantID)
	return s.transact(ctx, "RevokeByGrantID", func(tx *redis.Tx) (*batch, error) {
		keys, err := tx.LRange(ctx, s.key(grantKey), 0, -1).Result()
		if err != nil {
			return nil, err
		}
		b := &batch{}
		b.del(append(keys, grantKey)...)
		return b, nil
	}, s.key(grantKey))
}
