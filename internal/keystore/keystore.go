// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jeranaias/driftchat/internal/util"
	"golang.org/x/crypto/pbkdf2"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// nonceSize is the AES-GCM nonce size (12 bytes / 96 bits).
const nonceSize = 12

// keySize is the AES-256 key size.
const keySize = 32

// saltSize is the salt size for passphrase key derivation.
const saltSize = 32

// pbkdf2Iterations follows OWASP guidance for PBKDF2-SHA-256.
const pbkdf2Iterations = 600000

const (
	keysFile   = "keys.enc"
	masterFile = "master.key"
	saltFile   = "master.salt"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrKeyNotFound indicates no key is stored for the provider.
	ErrKeyNotFound = errors.New("no API key stored for provider")
	// ErrInvalidCiphertext indicates the key file is malformed.
	ErrInvalidCiphertext = errors.New("invalid key file format")
	// ErrDecryptionFailed indicates the wrong passphrase or tampered data.
	ErrDecryptionFailed = errors.New("decryption failed: wrong passphrase or corrupted key file")
	// ErrPassphraseRequired indicates the store was created with a
	// passphrase and must be opened with one.
	ErrPassphraseRequired = errors.New("keystore is passphrase-protected")
)

// zeroBytes zeros key material after use.
// SECURITY: Zero key material to prevent memory disclosure via crash dumps.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// =============================================================================
// KEYSTORE
// =============================================================================

// Keystore holds provider API keys sealed with AES-256-GCM.
type Keystore struct {
	mu     sync.RWMutex
	dir    string
	cipher cipher.AEAD
	keys   map[string]string
}

// Open opens (or initializes) a keystore in dir using a random master
// key kept in a 0600 file. Returns ErrPassphraseRequired when the store
// was created with a passphrase.
func Open(dir string) (*Keystore, error) {
	if _, err := os.Stat(filepath.Join(dir, saltFile)); err == nil {
		return nil, ErrPassphraseRequired
	}

	key, err := loadOrCreateMasterKey(dir)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(key)

	return open(dir, key)
}

// OpenWithPassphrase opens (or initializes) a passphrase-protected
// keystore in dir. The sealing key is derived with PBKDF2-SHA-256 from
// the passphrase and a per-store random salt.
func OpenWithPassphrase(dir, passphrase string) (*Keystore, error) {
	salt, err := loadOrCreateSalt(dir)
	if err != nil {
		return nil, err
	}

	key := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keySize, sha256.New)
	defer zeroBytes(key)

	return open(dir, key)
}

func open(dir string, key []byte) (*Keystore, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM cipher: %w", err)
	}

	ks := &Keystore{
		dir:    dir,
		cipher: gcm,
		keys:   make(map[string]string),
	}
	if err := ks.load(); err != nil {
		return nil, err
	}
	return ks, nil
}

// =============================================================================
// KEY ACCESS
// =============================================================================

// Get returns the stored API key for a provider.
func (k *Keystore) Get(provider string) (string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	key, ok := k.keys[normalize(provider)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, provider)
	}
	return key, nil
}

// Set stores an API key for a provider and persists the store.
func (k *Keystore) Set(provider, apiKey string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.keys[normalize(provider)] = apiKey
	return k.save()
}

// Delete removes a provider's key. Deleting a missing key is not an
// error.
func (k *Keystore) Delete(provider string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, ok := k.keys[normalize(provider)]; !ok {
		return nil
	}
	delete(k.keys, normalize(provider))
	return k.save()
}

// Providers returns the providers with stored keys, sorted.
func (k *Keystore) Providers() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()

	names := make([]string, 0, len(k.keys))
	for name := range k.keys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// load decrypts keys.enc into memory. A missing file means an empty
// store.
func (k *Keystore) load() error {
	data, err := os.ReadFile(filepath.Join(k.dir, keysFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read key file: %w", err)
	}

	plaintext, err := k.unseal(data)
	if err != nil {
		return err
	}
	defer zeroBytes(plaintext)

	if err := json.Unmarshal(plaintext, &k.keys); err != nil {
		return fmt.Errorf("failed to decode key file: %w", err)
	}
	return nil
}

// save encrypts the key map and writes it atomically.
// RELIABILITY: Atomic write with fsync prevents data loss on crash
func (k *Keystore) save() error {
	plaintext, err := json.Marshal(k.keys)
	if err != nil {
		return fmt.Errorf("failed to encode keys: %w", err)
	}
	defer zeroBytes(plaintext)

	ciphertext, err := k.seal(plaintext)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(k.dir, 0700); err != nil {
		return fmt.Errorf("failed to create keystore directory: %w", err)
	}
	if err := util.AtomicWriteFile(filepath.Join(k.dir, keysFile), ciphertext, 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

// seal encrypts plaintext as nonce || ciphertext || tag.
func (k *Keystore) seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return k.cipher.Seal(nonce, nonce, plaintext, nil), nil
}

func (k *Keystore) unseal(data []byte) ([]byte, error) {
	if len(data) < nonceSize {
		return nil, ErrInvalidCiphertext
	}
	plaintext, err := k.cipher.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// =============================================================================
// MASTER KEY / SALT
// =============================================================================

func loadOrCreateMasterKey(dir string) ([]byte, error) {
	path := filepath.Join(dir, masterFile)

	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != keySize {
			return nil, fmt.Errorf("master key file has wrong size: %d bytes", len(key))
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read master key: %w", err)
	}

	key = make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate master key: %w", err)
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keystore directory: %w", err)
	}
	if err := util.AtomicWriteFile(path, key, 0600); err != nil {
		return nil, fmt.Errorf("failed to store master key: %w", err)
	}
	return key, nil
}

func loadOrCreateSalt(dir string) ([]byte, error) {
	path := filepath.Join(dir, saltFile)

	salt, err := os.ReadFile(path)
	if err == nil {
		return salt, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read salt: %w", err)
	}

	salt = make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keystore directory: %w", err)
	}
	if err := util.AtomicWriteFile(path, salt, 0600); err != nil {
		return nil, fmt.Errorf("failed to store salt: %w", err)
	}
	return salt, nil
}
