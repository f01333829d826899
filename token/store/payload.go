package store

import (
	"encoding/json"
	"strconv"
	"time"
)

// Payload field names shared by every kind.
const (
	FieldJTI      = "jti"
	FieldKind     = "kind"
	FieldIssuedAt = "iat"
	FieldExpires  = "exp"
	FieldGrantID  = "grantId"
	FieldUserCode = "userCode"
	FieldUID      = "uid"
	FieldConsumed = "consumed"
)

// Payload is the JSON document stored for a record.
type Payload map[string]any

func (p Payload) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Int64 reads a numeric field, accepting the shapes produced by JSON decoding and by callers.
func (p Payload) Int64(key string) (int64, bool) {
	switch v := p[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}

func (p Payload) GrantID() string {
	return p.String(FieldGrantID)
}

func (p Payload) UserCode() string {
	return p.String(FieldUserCode)
}

func (p Payload) UID() string {
	return p.String(FieldUID)
}

// ExpiresAt returns the exp claim as a time.
func (p Payload) ExpiresAt() (time.Time, bool) {
	exp, ok := p.Int64(FieldExpires)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(exp, 0), true
}

// ConsumedAt returns when the record was consumed, if it has been.
func (p Payload) ConsumedAt() (time.Time, bool) {
	consumed, ok := p.Int64(FieldConsumed)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(consumed, 0), true
}
