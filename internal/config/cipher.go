package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100_000
	saltSize         = 16
	keySize          = 32 // AES-256
)

// Cipher encrypts config values flagged as secrets using a key derived from
// the machine hostname and a random salt persisted in a ".salt" file (in
// /data/config for NewCipher, in a chosen directory for NewCipherAt),
// independent of where the config file itself lives. The derivation
// (PBKDF2-HMAC-SHA256, 100k iterations) and cipher (AES-256-GCM) mirror the
// original Python implementation's encryption-at-rest scheme.
type Cipher struct {
	saltPath string
}

// NewCipher returns a Cipher that stores its salt at /data/config/.salt.
// Callers needing a different location should use NewCipherAt.
func NewCipher() *Cipher {
	return &Cipher{saltPath: "/data/config/.salt"}
}

// NewCipherAt returns a Cipher whose salt file lives under dir.
func NewCipherAt(dir string) *Cipher {
	return &Cipher{saltPath: filepath.Join(dir, ".salt")}
}

func (c *Cipher) loadOrCreateSalt() ([]byte, error) {
	data, err := os.ReadFile(c.saltPath)
	if err == nil && len(data) == saltSize {
		return data, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read salt: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.saltPath), 0o700); err != nil {
		return nil, fmt.Errorf("create salt dir: %w", err)
	}
	if err := os.WriteFile(c.saltPath, salt, 0o600); err != nil {
		return nil, fmt.Errorf("write salt: %w", err)
	}
	return salt, nil
}

func (c *Cipher) key() ([]byte, error) {
	salt, err := c.loadOrCreateSalt()
	if err != nil {
		return nil, err
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "streamops"
	}
	return pbkdf2.Key([]byte(hostname), salt, pbkdf2Iterations, keySize, sha256.New), nil
}

// Encrypt returns a base64-encoded nonce||ciphertext for plaintext.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	key, err := c.key()
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (c *Cipher) Decrypt(encoded string) (string, error) {
	key, err := c.key()
	if err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, body := raw[:nonceSize], raw[nonceSize:]
	plain, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plain), nil
}
