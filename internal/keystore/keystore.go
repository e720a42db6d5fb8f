// Package keystore is a reference, at-rest encrypted implementation of
// watermark.Lookup: a local stand-in for whatever datastore a real
// caller would key payload records by signature ID. It is not part of
// the watermark codec contract.
package keystore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"sonicmark/pkg/watermark"
)

const (
	magic        = "SNMKSTORE1"
	pbkdf2Iters  = 4096
	pbkdf2KeyLen = 32
)

// Store is a password-protected, file-backed map of signature ID to
// watermark.Payload, encrypted as a whole with AES-GCM.
type Store struct {
	path string
	key  []byte

	mu      sync.RWMutex
	records map[string]watermark.Payload
}

// deriveKey stretches password into a 32-byte AES key with PBKDF2, the
// same construction the host project uses for its own key locker.
func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, pbkdf2Iters, pbkdf2KeyLen, sha256.New)
}

// Open loads an existing store at path, or returns an empty one if the
// file does not exist yet; Save creates it on first write.
func Open(path, password string) (*Store, error) {
	s := &Store{path: path, records: map[string]watermark.Payload{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		s.key = deriveKey(password, []byte(magic))
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("keystore: reading %s: %w", path, err)
	}
	if len(data) < len(magic) || string(data[:len(magic)]) != magic {
		return nil, fmt.Errorf("keystore: %s is not a valid store file", path)
	}

	s.key = deriveKey(password, []byte(magic))
	plain, err := decrypt(data[len(magic):], s.key)
	if err != nil {
		return nil, fmt.Errorf("keystore: decrypting %s: %w", path, err)
	}
	if err := json.Unmarshal(plain, &s.records); err != nil {
		return nil, fmt.Errorf("keystore: parsing %s: %w", path, err)
	}
	return s, nil
}

// Put stores or replaces the payload for signatureKey.
func (s *Store) Put(signatureKey string, payload watermark.Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[signatureKey] = payload
}

// Save encrypts and writes the store to its backing file.
func (s *Store) Save() error {
	s.mu.RLock()
	plain, err := json.Marshal(s.records)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("keystore: serializing records: %w", err)
	}

	ciphertext, err := encrypt(plain, s.key)
	if err != nil {
		return fmt.Errorf("keystore: encrypting: %w", err)
	}

	out := append([]byte(magic), ciphertext...)
	if err := os.WriteFile(s.path, out, 0o600); err != nil {
		return fmt.Errorf("keystore: writing %s: %w", s.path, err)
	}
	return nil
}

// Find implements watermark.Lookup.
func (s *Store) Find(ctx context.Context, signatureKey string) (*watermark.Payload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.records[signatureKey]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func encrypt(data, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, data, nil), nil
}

func decrypt(data, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, io.ErrUnexpectedEOF
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
