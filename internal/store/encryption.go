package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/hkdf"

	perrors "github.com/pampa-ai/pampa/internal/errors"
)

const (
	// EncryptionKeyEnv holds the master key (32 bytes, base64 or hex).
	EncryptionKeyEnv = "PAMPA_ENCRYPTION_KEY"

	// encMagic prefixes every encrypted chunk artifact.
	encMagic = "PAMPAE1"

	encSaltLen = 16
	encIVLen   = 12
	encTagLen  = 16
	encKeyLen  = 32

	// hkdfInfo binds derived keys to the chunk format version.
	hkdfInfo = "pampa-chunk-v1"
)

// EncryptMode is the caller's encryption preference.
type EncryptMode int

const (
	// EncryptAuto encrypts iff a valid key is configured.
	EncryptAuto EncryptMode = iota
	// EncryptOn requires a valid key and fails fast without one.
	EncryptOn
	// EncryptOff never encrypts.
	EncryptOff
)

// MasterKey loads and decodes the master key from the environment.
// Returns (nil, nil) when the variable is unset.
func MasterKey() ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(EncryptionKeyEnv))
	if raw == "" {
		return nil, nil
	}
	return decodeMasterKey(raw)
}

func decodeMasterKey(raw string) ([]byte, error) {
	if key, err := base64.StdEncoding.DecodeString(raw); err == nil && len(key) == encKeyLen {
		return key, nil
	}
	if key, err := hex.DecodeString(raw); err == nil && len(key) == encKeyLen {
		return key, nil
	}
	return nil, perrors.New(perrors.CodeEncryptionKeyMalformed,
		"PAMPA_ENCRYPTION_KEY must be 32 bytes encoded as base64 or hex", nil)
}

// deriveChunkKey derives the per-chunk AES key via HKDF-SHA256.
func deriveChunkKey(masterKey, salt []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, masterKey, salt, []byte(hkdfInfo))
	key := make([]byte, encKeyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// sealChunk produces the encrypted artifact payload:
// magic | salt(16) | iv(12) | AES-256-GCM(plaintext) | tag(16).
// The GCM tag is appended to the ciphertext by crypto/cipher.
func sealChunk(masterKey, plaintext []byte) ([]byte, error) {
	salt := make([]byte, encSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	iv := make([]byte, encIVLen)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}

	key, err := deriveChunkKey(masterKey, salt)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(encMagic)+encSaltLen+encIVLen+len(plaintext)+encTagLen)
	out = append(out, encMagic...)
	out = append(out, salt...)
	out = append(out, iv...)
	out = gcm.Seal(out, iv, plaintext, nil)
	return out, nil
}

// openChunk reverses sealChunk. Error codes are part of the stable
// taxonomy: format, payload, and auth failures are distinguished.
func openChunk(masterKey, payload []byte) ([]byte, error) {
	if len(payload) < len(encMagic) || string(payload[:len(encMagic)]) != encMagic {
		return nil, perrors.New(perrors.CodeEncryptionFormatUnrecognized,
			"encrypted chunk header not recognized", nil)
	}
	rest := payload[len(encMagic):]
	if len(rest) < encSaltLen+encIVLen+encTagLen {
		return nil, perrors.New(perrors.CodeEncryptionPayloadInvalid,
			"encrypted chunk payload truncated", nil)
	}

	salt := rest[:encSaltLen]
	iv := rest[encSaltLen : encSaltLen+encIVLen]
	ciphertext := rest[encSaltLen+encIVLen:]

	key, err := deriveChunkKey(masterKey, salt)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, perrors.New(perrors.CodeEncryptionAuthFailed,
			"encrypted chunk failed authentication", err)
	}
	return plaintext, nil
}
