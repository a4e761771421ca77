// Package auth implements the password verifier scheme used by the wire
// protocol: a 64-character lowercase hex digest of the SHA-256 of the raw
// password bytes.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashPassword returns the verifier for a raw password.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// VerifyPassword reports whether password hashes to verifier. Comparison is
// constant-time.
func VerifyPassword(password, verifier string) bool {
	computed := HashPassword(password)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(verifier)) == 1
}
