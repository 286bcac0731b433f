package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// Checksum returns the hex SHA-256 of content. Draft metadata and receipt rows
// both carry it, so the two must agree for the same bytes.
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
