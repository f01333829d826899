package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	errs "github.com/jrsteele09/go-tokenator/internal/errors"
	"github.com/redis/go-redis/v9"
)

const defaultMaxTxAttempts = 5

// Store persists token records in redis. It is safe for concurrent use; the redis client
// is the only shared state.
type Store struct {
	client        redis.UniversalClient
	keyPrefix     string
	now           func() time.Time
	maxTxAttempts int
}

type Option func(*Store)

// WithNowFunc sets the clock used for expiry checks and consume timestamps.
func WithNowFunc(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithMaxTxAttempts bounds how often an optimistic transaction is retried after a
// concurrent write to one of its watched keys.
func WithMaxTxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxTxAttempts = n
		}
	}
}

func New(client redis.UniversalClient, keyPrefix string, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, errs.New("[store.New] redis client is required")
	}
	s := &Store{
		client:        client,
		keyPrefix:     keyPrefix,
		now:           time.Now,
		maxTxAttempts: defaultMaxTxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return storageError("Ping", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(k string) string {
	return s.keyPrefix + k
}

// Upsert writes a record together with its index entries in a single transaction.
// A zero ttl stores the record without expiry.
func (s *Store) Upsert(ctx context.Context, kind Kind, id string, payload Payload, ttl time.Duration) error {
	if !kind.Valid() {
		return fmt.Errorf("[store.Upsert] unknown kind %q", kind)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("[store.Upsert] encoding %s payload: %w", kind, err)
	}

	key := RecordKey(kind, id)
	grantID := ""
	if kind.Grantable() {
		grantID = payload.GrantID()
	}
	build := func(grantTTL time.Duration) *batch {
		b := &batch{}
		b.writeRecord(kind, key, data, ttl)
		if grantID != "" {
			b.indexGrant(GrantKey(grantID), key, ttl, grantTTL)
		}
		if userCode := payload.UserCode(); userCode != "" {
			b.set(UserCodeKey(userCode), id, ttl)
		}
		if uid := payload.UID(); uid != "" {
			b.set(SessionUIDKey(uid), id, ttl)
		}
		return b
	}

	if grantID == "" {
		return s.commit(ctx, "Upsert", build(ttlMissing))
	}
	grantKey := s.key(GrantKey(grantID))
	return s.transact(ctx, "Upsert", func(tx *redis.Tx) (*batch, error) {
		current, err := tx.TTL(ctx, grantKey).Result()
		if err != nil {
			return nil, err
		}
		return build(current), nil
	}, grantKey)
}

// Find returns the payload of a record merged with its out-of-band fields. A missing or
// expired record is reported with found == false and no error.
func (s *Store) Find(ctx context.Context, kind Kind, id string) (payload Payload, found bool, err error) {
	if !kind.Valid() {
		return nil, false, fmt.Errorf("[store.Find] unknown kind %q", kind)
	}
	key := s.key(RecordKey(kind, id))

	switch kind.Encoding() {
	case EncodingFieldMap:
		fields, err := s.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, false, storageError("Find", err)
		}
		if len(fields) == 0 {
			return nil, false, nil
		}
		raw, ok := fields[fieldPayload]
		if !ok {
			return nil, false, fmt.Errorf("[store.Find] %w: %s has no payload field", errs.ErrCorruptRecord, key)
		}
		if payload, err = decodePayload(key, raw); err != nil {
			return nil, false, err
		}
		for field, value := range fields {
			switch field {
			case fieldPayload:
			case FieldConsumed:
				if ts, err := strconv.ParseInt(value, 10, 64); err == nil {
					payload[field] = ts
				}
			default:
				payload[field] = value
			}
		}
	default:
		raw, err := s.client.Get(ctx, key).Result()
		if errs.Is(err, redis.Nil) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, storageError("Find", err)
		}
		if payload, err = decodePayload(key, raw); err != nil {
			return nil, false, err
		}
	}

	if exp, ok := payload.ExpiresAt(); ok && !s.now().Before(exp) {
		return nil, false, nil
	}
	return payload, true, nil
}

// Consume marks a record consumed. The first timestamp wins, so repeated calls observe the
// same value; expiry and the payload are left untouched. Consuming a missing record is a no-op.
func (s *Store) Consume(ctx context.Context, kind Kind, id string) error {
	if !kind.Consumable() {
		return fmt.Errorf("[store.Consume] %s records are not consumable", kind)
	}
	recordKey := RecordKey(kind, id)
	key := s.key(recordKey)
	consumedAt := strconv.FormatInt(s.now().Unix(), 10)

	return s.transact(ctx, "Consume", func(tx *redis.Tx) (*batch, error) {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		b := &batch{}
		if n > 0 {
			b.hsetnx(recordKey, FieldConsumed, consumedAt)
		}
		return b, nil
	}, key)
}

// Destroy deletes a record. Deleting a missing record is not an error.
func (s *Store) Destroy(ctx context.Context, kind Kind, id string) error {
	if err := s.client.Del(ctx, s.key(RecordKey(kind, id))).Err(); err != nil {
		return storageError("Destroy", err)
	}
	return nil
}

func (s *Store) commit(ctx context.Context, op string, b *batch) error {
	if b.empty() {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		b.apply(ctx, pipe, s.keyPrefix)
		return nil
	})
	if err != nil {
		return storageError(op, err)
	}
	return nil
}

// transact runs plan under WATCH on keys and commits the batch it returns with MULTI/EXEC.
// The whole read-plan-write cycle is retried when a watched key changes underneath it.
func (s *Store) transact(ctx context.Context, op string, plan func(tx *redis.Tx) (*batch, error), keys ...string) error {
	txf := func(tx *redis.Tx) error {
		b, err := plan(tx)
		if err != nil {
			return err
		}
		if b.empty() {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			b.apply(ctx, pipe, s.keyPrefix)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < s.maxTxAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, keys...)
		if err == nil {
			return nil
		}
		if errs.Is(err, redis.TxFailedErr) {
			continue
		}
		return storageError(op, err)
	}
	return storageError(op, fmt.Errorf("transaction on %s aborted after %d attempts", strings.Join(keys, ", "), s.maxTxAttempts))
}

func decodePayload(key, raw string) (Payload, error) {
	var payload Payload
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("[store.Find] %w: decoding %s: %v", errs.ErrCorruptRecord, key, err)
	}
	if payload == nil {
		return nil, fmt.Errorf("[store.Find] %w: %s holds a null payload", errs.ErrCorruptRecord, key)
	}
	for k, v := range payload {
		payload[k] = restoreNumbers(v)
	}
	return payload, nil
}

// restoreNumbers turns decoded json.Number values back into int64, or float64 when the number
// is not integral, so integers keep full precision.
func restoreNumbers(v any) any {
	switch value := v.(type) {
	case json.Number:
		if n, err := value.Int64(); err == nil {
			return n
		}
		f, _ := value.Float64()
		return f
	case map[string]any:
		for k, item := range value {
			value[k] = restoreNumbers(item)
		}
		return value
	case []any:
		for i, item := range value {
			value[i] = restoreNumbers(item)
		}
		return value
	}
	return v
}

func storageError(op string, err error) error {
	if strings.HasPrefix(err.Error(), "WRONGTYPE") {
		return fmt.Errorf("[store.%s] %w: %v", op, errs.ErrCorruptRecord, err)
	}
	return fmt.Errorf("[store.%s] %w: %w", op, errs.ErrStorageUnavailable, err)
}
