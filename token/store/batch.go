package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL values reported by redis for keys without a usable expiry.
const (
	ttlMissing    = time.Duration(-2)
	ttlPersistent = time.Duration(-1)
)

const fieldPayload = "payload"

type opCode int

const (
	opSet opCode = iota
	opHSet
	opHSetNX
	opExpire
	opPersist
	opRPush
	opDel
)

type op struct {
	code  opCode
	keys  []string
	field string
	value string
	ttl   time.Duration
}

// batch collects the writes of one store call. Keys are unprefixed; the prefix is applied when
// the batch is queued on a MULTI/EXEC pipeline, so every write lands or none does.
type batch struct {
	ops []op
}

func (b *batch) empty() bool {
	return len(b.ops) == 0
}

// set writes a string value. A zero ttl leaves the key without expiry.
func (b *batch) set(key, value string, ttl time.Duration) {
	b.ops = append(b.ops, op{code: opSet, keys: []string{key}, value: value, ttl: ttl})
}

func (b *batch) hset(key, field, value string) {
	b.ops = append(b.ops, op{code: opHSet, keys: []string{key}, field: field, value: value})
}

func (b *batch) hsetnx(key, field, value string) {
	b.ops = append(b.ops, op{code: opHSetNX, keys: []string{key}, field: field, value: value})
}

func (b *batch) expire(key string, ttl time.Duration) {
	b.ops = append(b.ops, op{code: opExpire, keys: []string{key}, ttl: ttl})
}

func (b *batch) persist(key string) {
	b.ops = append(b.ops, op{code: opPersist, keys: []string{key}})
}

func (b *batch) rpush(key, value string) {
	b.ops = append(b.ops, op{code: opRPush, keys: []string{key}, value: value})
}

func (b *batch) del(keys ...string) {
	if len(keys) == 0 {
		return
	}
	b.ops = append(b.ops, op{code: opDel, keys: keys})
}

// writeRecord queues the primary write of a record in the shape its kind requires.
func (b *batch) writeRecord(kind Kind, key string, data []byte, ttl time.Duration) {
	switch kind.Encoding() {
	case EncodingFieldMap:
		b.hset(key, fieldPayload, string(data))
		if ttl > 0 {
			b.expire(key, ttl)
		}
	default:
		b.set(key, string(data), ttl)
	}
}

// indexGrant appends recordKey to the grant list and makes sure the list lives at least as long
// as the record. current is the list's TTL as reported by redis before the batch runs.
func (b *batch) indexGrant(grantKey, recordKey string, ttl, current time.Duration) {
	b.rpush(grantKey, recordKey)
	switch {
	case ttl <= 0:
		b.persist(grantKey)
	case current == ttlPersistent:
	case current < ttl:
		b.expire(grantKey, ttl)
	}
}

func (b *batch) apply(ctx context.Context, pipe redis.Pipeliner, prefix string) {
	for _, o := range b.ops {
		key := prefix + o.keys[0]
		switch o.code {
		case opSet:
			pipe.Set(ctx, key, o.value, o.ttl)
		case opHSet:
			pipe.HSet(ctx, key, o.field, o.value)
		case opHSetNX:
			pipe.HSetNX(ctx, key, o.field, o.value)
		case opExpire:
			pipe.Expire(ctx, key, o.ttl)
		case opPersist:
			pipe.Persist(ctx, key)
		case opRPush:
			pipe.RPush(ctx, key, o.value)
		case opDel:
			keys := make([]string, len(o.keys))
			for i, k := range o.keys {
				keys[i] = prefix + k
			}
			pipe.Del(ctx, keys...)
		}
	}
}
