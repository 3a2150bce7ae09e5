package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost   = 14 // OWASP 2026 recommendation
	APIKeyLength = 32 // 256 bits
	KeyPrefix    = "snk_"
)

// GenerateAPIKey creates a new random service API key. The raw key is
// returned once to the caller; only the bcrypt hash is stored.
func GenerateAPIKey() (string, error) {
	bytes := make([]byte, APIKeyLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return KeyPrefix + base64.RawURLEncoding.EncodeToString(bytes), nil
}

// HashAPIKey hashes an API key for storage
func HashAPIKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("api key cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(key), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash api key: %w", err)
	}
	return string(hashedBytes), nil
}

// CompareAPIKey checks a presented key against its stored hash
func CompareAPIKey(hashedKey, key string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedKey), []byte(key))
}
