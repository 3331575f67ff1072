// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package masking

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"os"
	"testing"

	"golang.org/x/crypto/hkdf"
)

// TestTokenStore_SealOpen_RoundTrips exercises the HKDF-derived AEAD
// directly without a live database, so it runs unconditionally.
func TestTokenStore_SealOpen_RoundTrips(t *testing.T) {
	store := &PostgresTokenStore{}
	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte("test-master-secret"), nil, []byte("masking.token_map.v1"))
	if _, err := kdf.Read(key); err != nil {
		t.Fatalf("derive key: %v", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatalf("init cipher: %v", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		t.Fatalf("init aead: %v", err)
	}
	store.aead = aead

	sealed, err := store.seal("sensitive_value")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if sealed == "sensitive_value" {
		t.Fatal("sealed value must not equal plaintext")
	}
	opened, err := store.open(sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if opened != "sensitive_value" {
		t.Errorf("open() = %q, want sensitive_value", opened)
	}
}

// getTestDBURL skips the test unless DATABASE_URL is set, matching the
// connectors/registry integration test convention.
func getTestDBURL(t *testing.T) string {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("Skipping integration test - DATABASE_URL not set")
	}
	return dbURL
}

func TestPostgresTokenStore_Integration_PutAndGet(t *testing.T) {
	dbURL := getTestDBURL(t)

	store, err := NewPostgresTokenStore(dbURL, []byte("integration-test-secret"))
	if err != nil {
		t.Fatalf("NewPostgresTokenStore failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	store.Put("4111111111111111", "TOKEN_00000001")
	token, ok := store.Get("4111111111111111")
	if !ok || token != "TOKEN_00000001" {
		t.Errorf("Get() = (%q, %v), want (TOKEN_00000001, true)", token, ok)
	}
}
