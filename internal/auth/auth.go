package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

func HashToken(tok string) string {
	sum := sha256.Sum256([]byte(tok))
	return hex.EncodeToString(sum[:])
}

// NewShareToken returns a fresh random token for a share link. Only its
// hash is persisted.
func NewShareToken() string {
	var b [24]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}
