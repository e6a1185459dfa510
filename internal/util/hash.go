package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashUserID returns the hex SHA-256 of a raw platform user id. Profiles
// and reward codes are keyed by this hash so the stored data cannot be
// correlated back to platform accounts by whoever holds the database.
func HashUserID(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])
}
