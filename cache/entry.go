package cache

import (
	"bytes"
	"encoding/json"
	"time"
	"unicode/utf8"
)

// Entry is a stored value plus the instant it stops being valid.
type Entry[V any] struct {
	Value     V
	ExpiresAt time.Time
}

func newEntry[V any](value V, now time.Time, ttl time.Duration) Entry[V] {
	return Entry[V]{Value: value, ExpiresAt: now.Add(normalizeTTL(ttl))}
}

// Expired reports whether the entry is stale at now. The expiry instant itself
// already counts as stale, so a zero TTL never produces a readable entry.
func (e Entry[V]) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Envelope is the serialized form used by backends without native expiry.
// Payloads that survive json.Marshal byte for byte are embedded as Data;
// anything else goes into Binary.
// Timestamps are Unix milliseconds.
type Envelope struct {
	Data      json.RawMessage `json:"data,omitempty"`
	Binary    []byte          `json:"binary,omitempty"`
	ExpiresAt int64           `json:"expiresAt"`
	CreatedAt int64           `json:"createdAt"`
}

// NewEnvelope wraps an encoded payload with its expiry computed from now.
func NewEnvelope(payload []byte, now time.Time, ttl time.Duration) Envelope {
	env := Envelope{
		ExpiresAt: now.Add(normalizeTTL(ttl)).UnixMilli(),
		CreatedAt: now.UnixMilli(),
	}
	if embeddable(payload) {
		env.Data = append(json.RawMessage(nil), payload...)
	} else {
		env.Binary = append([]byte{}, payload...)
	}
	return env
}

// embeddable reports whether payload is JSON that encoding/json re-emits
// unchanged: compact, valid UTF-8, and free of the characters Marshal
// escapes for HTML.
func embeddable(payload []byte) bool {
	if len(payload) == 0 || !utf8.Valid(payload) || !json.Valid(payload) {
		return false
	}
	if bytes.ContainsAny(payload, "<>&\u2028\u2029") {
		return false
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err != nil {
		return false
	}
	return bytes.Equal(buf.Bytes(), payload)
}

// Expired applies the same boundary rule as Entry.Expired.
func (e Envelope) Expired(now time.Time) bool {
	return now.UnixMilli() >= e.ExpiresAt
}

// Payload returns the wrapped bytes as they were handed to NewEnvelope.
func (e Envelope) Payload() []byte {
	if e.Data != nil {
		return append([]byte(nil), e.Data...)
	}
	return append([]byte{}, e.Binary...)
}
