package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken derives the stored lookup key for an API token.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
