package auth

import (
	"strings"
	"testing"
)

func TestGenerateAPIKey(t *testing.T) {
	key1, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey returned error: %v", err)
	}
	key2, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey returned error: %v", err)
	}

	if !strings.HasPrefix(key1, KeyPrefix) {
		t.Errorf("expected key to have prefix %q, got %q", KeyPrefix, key1)
	}
	if key1 == key2 {
		t.Error("expected distinct keys from consecutive generations")
	}
}

func TestHashAndCompareAPIKey(t *testing.T) {
	key, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey returned error: %v", err)
	}

	hash, err := HashAPIKey(key)
	if err != nil {
		t.Fatalf("HashAPIKey returned error: %v", err)
	}
	if hash == key {
		t.Error("hash must not equal the raw key")
	}

	if err := CompareAPIKey(hash, key); err != nil {
		t.Errorf("expected key to match its own hash: %v", err)
	}
	if err := CompareAPIKey(hash, key+"x"); err == nil {
		t.Error("expected mismatch for altered key")
	}
}

func TestHashAPIKeyEmpty(t *testing.T) {
	if _, err := HashAPIKey(""); err == nil {
		t.Error("expected error for empty key")
	}
}
