package cache

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// EncodeKey maps an opaque cache key onto a fixed-length lowercase hex
// identifier that is valid as a file name or object key. Distinct keys only
// share an identifier on a BLAKE2b-256 collision.
func EncodeKey(key string) string {
	sum := blake2b.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
