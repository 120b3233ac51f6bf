package securestore

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mycheff/engine/internal/domain"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	saltLen = 16
	keyLen  = chacha20poly1305.KeySize

	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 1
)

// fileFormat is the on-disk layout. Sealed is nonce||ciphertext of the
// JSON-encoded key/value map.
type fileFormat struct {
	Salt   []byte `json:"salt"`
	Sealed []byte `json:"sealed"`
}

// FileStore keeps the values in a single file encrypted with
// XChaCha20-Poly1305 under a key derived from a passphrase with Argon2id.
type FileStore struct {
	path       string
	passphrase []byte

	mu   sync.Mutex
	salt []byte
	key  []byte
}

// NewFileStore creates a store backed by path. The file is created on first write.
func NewFileStore(path, passphrase string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store path is required")
	}
	if passphrase == "" {
		return nil, errors.New("file store passphrase is required")
	}
	return &FileStore{path: path, passphrase: []byte(passphrase)}, nil
}

// Get retrieves a value
func (s *FileStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return "", err
	}
	v, ok := data[key]
	if !ok {
		return "", domain.ErrStoreKeyNotFound
	}
	return v, nil
}

// Set stores all values in one write
func (s *FileStore) Set(ctx context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}
	for k, v := range values {
		data[k] = v
	}
	return s.save(data)
}

// Delete removes the given keys
func (s *FileStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(data, k)
	}
	return s.save(data)
}

// load reads and decrypts the file. A missing file is an empty store.
func (s *FileStore) load() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read secure store: %w", err)
	}

	var ff fileFormat
	if err := json.Unmarshal(raw, &ff); err != nil {
		return nil, fmt.Errorf("decode secure store: %w", err)
	}
	if len(ff.Salt) != saltLen {
		return nil, errors.New("decode secure store: bad salt")
	}
	if s.key == nil || string(s.salt) != string(ff.Salt) {
		s.salt = ff.Salt
		s.key = deriveKey(s.passphrase, ff.Salt)
	}

	plain, err := open(s.key, ff.Sealed)
	if err != nil {
		return nil, fmt.Errorf("decrypt secure store: %w", err)
	}

	data := make(map[string]string)
	if err := json.Unmarshal(plain, &data); err != nil {
		return nil, fmt.Errorf("decode secure store: %w", err)
	}
	return data, nil
}

// save encrypts data and atomically replaces the file
func (s *FileStore) save(data map[string]string) error {
	if s.key == nil {
		salt := make([]byte, saltLen)
		if _, err := rand.Read(salt); err != nil {
			return err
		}
		s.salt = salt
		s.key = deriveKey(s.passphrase, salt)
	}

	plain, err := json.Marshal(data)
	if err != nil {
		return err
	}
	sealed, err := seal(s.key, plain)
	if err != nil {
		return fmt.Errorf("encrypt secure store: %w", err)
	}
	out, err := json.Marshal(fileFormat{Salt: s.salt, Sealed: sealed})
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create secure store dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".securestore-*")
	if err != nil {
		return fmt.Errorf("write secure store: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return fmt.Errorf("write secure store: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("write secure store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write secure store: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

func deriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, keyLen)
}

func seal(key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, nil), nil
}

func open(key, sealed []byte) ([]byte, error) {
	if len(sealed) < chacha20poly1305.NonceSizeX {
		return nil, errors.New("sealed data too short")
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := sealed[:chacha20poly1305.NonceSizeX]
	return aead.Open(nil, nonce, sealed[chacha20poly1305.NonceSizeX:], nil)
}
