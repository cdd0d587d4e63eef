package encryption

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")
	ErrDecryptionFailed  = errors.New("decryption failed")
	ErrKeyNotFound       = errors.New("encryption key not found")
	ErrInvalidKeyLength  = errors.New("encryption key must be 32 bytes for AES-256")
)

const envelopePrefix = "$enc$v1$"

// Vault handles encryption of payment-gateway secrets at rest and
// minting of opaque tokens. The master key is read-only after init.
type Vault struct {
	key        []byte
	keyVersion string
	mu         sync.RWMutex
	gcpClient  *secretmanager.Client
	projectID  string
	secretName string
}

// Config holds configuration for the vault.
type Config struct {
	// GCP Secret Manager configuration (production)
	GCPProjectID string
	SecretName   string

	// Local key for development: base64 or hex encoded 32 bytes
	LocalKey string
}

// DefaultConfig reads the vault configuration from the environment.
func DefaultConfig() Config {
	return Config{
		GCPProjectID: os.Getenv("GCP_PROJECT_ID"),
		SecretName:   os.Getenv("ENCRYPTION_SECRET_NAME"),
		LocalKey:     os.Getenv("ENCRYPTION_LOCAL_KEY"),
	}
}

// NewVault creates a vault. GCP Secret Manager is tried first when
// configured; otherwise the local key is used.
func NewVault(ctx context.Context, cfg Config) (*Vault, error) {
	v := &Vault{
		projectID:  cfg.GCPProjectID,
		secretName: cfg.SecretName,
	}

	if cfg.GCPProjectID != "" && cfg.SecretName != "" {
		client, err := secretmanager.NewClient(ctx)
		if err == nil {
			v.gcpClient = client
			if err := v.loadKeyFromSecretManager(ctx); err == nil {
				return v, nil
			}
		}
	}

	if cfg.LocalKey != "" {
		key, err := base64.StdEncoding.DecodeString(cfg.LocalKey)
		if err != nil {
			key, err = hex.DecodeString(cfg.LocalKey)
			if err != nil {
				return nil, fmt.Errorf("invalid local key format: %w", err)
			}
		}
		if len(key) != 32 {
			return nil, ErrInvalidKeyLength
		}
		v.key = key
		v.keyVersion = "local"
		return v, nil
	}

	return nil, ErrKeyNotFound
}

func (v *Vault) loadKeyFromSecretManager(ctx context.Context) error {
	name := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", v.projectID, v.secretName)

	result, err := v.gcpClient.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: name,
	})
	if err != nil {
		return fmt.Errorf("failed to access secret: %w", err)
	}

	key := result.Payload.Data
	if len(key) != 32 {
		return ErrInvalidKeyLength
	}

	v.mu.Lock()
	v.key = key
	v.keyVersion = result.Name
	v.mu.Unlock()

	return nil
}

// Encrypt encrypts plaintext using AES-256-GCM with a fresh random
// nonce. Output format: $enc$v1$keyVersion$base64(nonce||ciphertext).
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	v.mu.RLock()
	key := v.key
	version := v.keyVersion
	v.mu.RUnlock()

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	encoded := base64.StdEncoding.EncodeToString(ciphertext)

	return envelopePrefix + version + "$" + encoded, nil
}

// Decrypt decrypts ciphertext produced by Encrypt. Malformed or
// tampered input returns a typed error, never a panic.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	if !IsEncrypted(ciphertext) {
		return "", ErrInvalidCiphertext
	}

	parts := strings.Split(ciphertext, "$")
	// parts[0]="", parts[1]="enc", parts[2]="v1", parts[3]=keyVersion, parts[4]=payload
	encoded := parts[4]

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	v.mu.RLock()
	key := v.key
	v.mu.RUnlock()

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", ErrInvalidCiphertext
	}

	nonce, ciphertextBytes := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertextBytes, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// IsEncrypted is a pure structural check on the envelope format. Writers
// use it to guard against double-encryption on save; it never touches
// the key.
func IsEncrypted(s string) bool {
	if !strings.HasPrefix(s, envelopePrefix) {
		return false
	}
	parts := strings.Split(s, "$")
	if len(parts) != 5 || parts[4] == "" {
		return false
	}
	_, err := base64.StdEncoding.DecodeString(parts[4])
	return err == nil
}

// Hash produces a keyed, salted SHA-256 hex digest. Used for searchable
// hashes of values that must not be stored in the clear.
func (v *Vault) Hash(data, salt string) string {
	v.mu.RLock()
	key := v.key
	v.mu.RUnlock()

	h := sha256.New()
	h.Write(key)
	h.Write([]byte(salt))
	h.Write([]byte(strings.ToLower(strings.TrimSpace(data))))
	return hex.EncodeToString(h.Sum(nil))
}

// RandomToken returns nBytes of cryptographic randomness, hex encoded.
func RandomToken(nBytes int) (string, error) {
	buf := make([]byte, nBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Close closes the GCP client.
func (v *Vault) Close() error {
	if v.gcpClient != nil {
		return v.gcpClient.Close()
	}
	return nil
}
