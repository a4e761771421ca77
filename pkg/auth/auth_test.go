package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashPassword(t *testing.T) {
	// SHA-256("admin"), the seeded verifier for the primary admin.
	const adminDigest = "8c6976e5b5410415bde908bd4dee15dfb167a9c873fc4bb8a81f6f2ab448a918"

	assert.Equal(t, adminDigest, HashPassword("admin"))
	assert.Len(t, HashPassword("anything"), 64)
}

func TestVerifyPassword(t *testing.T) {
	verifier := HashPassword("secret")

	assert.True(t, VerifyPassword("secret", verifier))
	assert.False(t, VerifyPassword("Secret", verifier))
	assert.False(t, VerifyPassword("secret", verifier[:63]+"0"))
	assert.False(t, VerifyPassword("", verifier))
}
