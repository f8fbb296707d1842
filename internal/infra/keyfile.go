package infra

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
)

const (
	keyFileName = ".prefs_key"
	keySize     = 32 // 256-bit key for the encrypted preference store
)

// KeyFile manages the preference-store encryption key in a hidden file
// with 0600 permissions inside the data directory.
type KeyFile struct {
	path string
}

// NewKeyFile creates a KeyFile for the given data directory.
func NewKeyFile(dataDir string) *KeyFile {
	return &KeyFile{path: filepath.Join(dataDir, keyFileName)}
}

// Load reads and decodes the key.
func (k *KeyFile) Load() ([]byte, error) {
	encoded, err := os.ReadFile(k.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	key, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(key), keySize)
	}
	return key, nil
}

// Store writes the key with restricted permissions.
func (k *KeyFile) Store(key []byte) error {
	if len(key) != keySize {
		return fmt.Errorf("invalid key size: got %d, want %d", len(key), keySize)
	}
	if err := os.MkdirAll(filepath.Dir(k.path), 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(k.path, []byte(encoded), 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

// Exists reports whether a key file is present.
func (k *KeyFile) Exists() bool {
	_, err := os.Stat(k.path)
	return err == nil
}

// EnsureKey returns the existing key, generating and storing a new random
// one on first run.
func (k *KeyFile) EnsureKey() ([]byte, error) {
	if k.Exists() {
		return k.Load()
	}
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate random key: %w", err)
	}
	if err := k.Store(key); err != nil {
		return nil, err
	}
	return key, nil
}
