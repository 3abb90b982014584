package security

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken calculates a SHA-256 hash of the provided value. Used to derive
// fixed-length store keys from free-form identifiers such as client addresses.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
