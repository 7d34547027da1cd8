package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// backendKey hashes a cache key for shared backends. Raw keys are JSON and may
// contain spaces or exceed memcached's 250-byte limit.
func backendKey(prefix, key string) string {
	sum := sha256.Sum256([]byte(key))
	return prefix + hex.EncodeToString(sum[:])
}

// storedEntry is the wire form of an Entry in shared backends.
type storedEntry struct {
	Data      json.RawMessage `json:"data"`
	ExpiresMs int64           `json:"expiresMs"`
}

func encodeEntry(e Entry) ([]byte, error) {
	return json.Marshal(storedEntry{Data: e.Data, ExpiresMs: e.Expires.UnixMilli()})
}

func decodeEntry(raw []byte) (Entry, error) {
	var s storedEntry
	if err := json.Unmarshal(raw, &s); err != nil {
		return Entry{}, err
	}
	return Entry{Data: s.Data, Expires: time.UnixMilli(s.ExpiresMs)}, nil
}

// backendTTL is how long a shared backend keeps an entry: the time left until
// Expires, rounded up to whole seconds, never below one second.
func backendTTL(e Entry, now time.Time) time.Duration {
	left := e.Expires.Sub(now)
	if left < time.Second {
		return time.Second
	}
	return left.Truncate(time.Second) + time.Second
}
