package bill

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// HashBytes returns the lowercase hex SHA-256 digest of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashString returns the lowercase hex SHA-256 digest of s.
func HashString(s string) string {
	return HashBytes([]byte(s))
}

// HashJSON returns the SHA-256 hex digest of the canonical JSON encoding of obj.
// encoding/json marshals map keys in lexicographic order, which fixes the byte
// serialization for every hashed object. Key order is load-bearing: metadata
// hashes, mining payload hashes, and bill summary hashes all depend on it.
// obj must be JSON-marshalable (decoded JSON or scalar fields).
func HashJSON(obj map[string]any) string {
	data, _ := json.Marshal(obj)
	return HashBytes(data)
}
