package middleware

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/manifesto-ai/bridge/internal/logging"
	"github.com/manifesto-ai/bridge/pkg/ports"
)

// envelopePrefix marks an encrypted value in the underlying store.
const envelopePrefix = "enc:v1:"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte

	// Paths are regular expressions matched against full semantic paths.
	// Only matching values are encrypted; an empty list matches every path.
	Paths []string

	// Logger receives sealing and opening failures. Defaults to a no-op logger.
	Logger *slog.Logger
}

type encryptionMiddleware struct {
	base
	config   EncryptionConfig
	patterns []*regexp.Regexp
}

// NewEncryptionMiddleware creates a middleware that stores values encrypted with AES-GCM.
// Each value is JSON encoded, sealed and stored as an opaque string; reads reverse it.
// A matching path whose stored value is not an envelope reads as nil.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	patterns := make([]*regexp.Regexp, len(config.Paths))
	for i, p := range config.Paths {
		patterns[i] = regexp.MustCompile(p)
	}
	if config.Logger == nil {
		config.Logger = logging.NewNop()
	}
	return func(next ports.Store) ports.Store {
		return &encryptionMiddleware{
			base:     base{next},
			config:   config,
			patterns: patterns,
		}
	}
}

func (m *encryptionMiddleware) covers(path string) bool {
	if len(m.patterns) == 0 {
		return true
	}
	for _, p := range m.patterns {
		if p.MatchString(path) {
			return true
		}
	}
	return false
}

// seal returns the envelope stored for value.
// ok is false when value could not be sealed; the write is then skipped.
func (m *encryptionMiddleware) seal(path string, value any) (sealed any, ok bool) {
	if !m.covers(path) {
		return value, true
	}
	plainText, err := json.Marshal(value)
	if err != nil {
		m.config.Logger.Error("Failed to encode value for encryption, write skipped", "path", path, "err", err)
		return nil, false
	}
	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		m.config.Logger.Error("Failed to encrypt value, write skipped", "path", path, "err", err)
		return nil, false
	}
	return envelopePrefix + base64.StdEncoding.EncodeToString(ciphertext), true
}

func (m *encryptionMiddleware) open(path string, stored any) any {
	if !m.covers(path) || stored == nil {
		return stored
	}
	envelope, ok := stored.(string)
	if !ok || !strings.HasPrefix(envelope, envelopePrefix) {
		// Fail secure: a plain value where a sealed one is expected is not trusted.
		m.config.Logger.Warn("Unsealed value at encrypted path", "path", path)
		return nil
	}
	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(envelope, envelopePrefix))
	if err != nil {
		m.config.Logger.Warn("Malformed envelope", "path", path, "err", err)
		return nil
	}
	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		m.config.Logger.Warn("Failed to decrypt value", "path", path, "err", err)
		return nil
	}
	var value any
	if err := json.Unmarshal(plainText, &value); err != nil {
		m.config.Logger.Warn("Failed to decode decrypted value", "path", path, "err", err)
		return nil
	}
	return value
}

func (m *encryptionMiddleware) openAll(stored map[string]any) map[string]any {
	out := make(map[string]any, len(stored))
	for path, v := range stored {
		out[path] = m.open(path, v)
	}
	return out
}

func (m *encryptionMiddleware) sealAll(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for path, v := range values {
		if sealed, ok := m.seal(path, v); ok {
			out[path] = sealed
		}
	}
	return out
}

func (m *encryptionMiddleware) GetData(path string) any {
	return m.open(path, m.Store.GetData(path))
}

func (m *encryptionMiddleware) GetState(path string) any {
	return m.open(path, m.Store.GetState(path))
}

func (m *encryptionMiddleware) CaptureData() map[string]any {
	return m.openAll(m.Store.CaptureData())
}

func (m *encryptionMiddleware) CaptureState() map[string]any {
	return m.openAll(m.Store.CaptureState())
}

func (m *encryptionMiddleware) SetData(path string, value any) {
	if sealed, ok := m.seal(path, value); ok {
		m.Store.SetData(path, sealed)
	}
}

func (m *encryptionMiddleware) SetState(path string, value any) {
	if sealed, ok := m.seal(path, value); ok {
		m.Store.SetState(path, sealed)
	}
}

func (m *encryptionMiddleware) SetManyData(values map[string]any) {
	if sealed := m.sealAll(values); len(sealed) > 0 {
		m.setManyData(sealed)
	}
}

func (m *encryptionMiddleware) SetManyState(values map[string]any) {
	if sealed := m.sealAll(values); len(sealed) > 0 {
		m.setManyState(sealed)
	}
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
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

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	// Try active key first
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}

	// Try fallbacks in order
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	ciphertextBytes := ciphertext[gcm.NonceSize():]

	return gcm.Open(nil, nonce, ciphertextBytes, nil)
}
