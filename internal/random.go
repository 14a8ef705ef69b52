package internal

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// MinSecretSize is the shortest HMAC key accepted by the engine.
const MinSecretSize = 32

// SecretSize returns the recommended HMAC key length for method: the digest
// size of its hash.
func SecretSize(method string) (int, error) {
	switch method {
	case "hs256", "":
		return 32, nil
	case "hs384":
		return 48, nil
	case "hs512":
		return 64, nil
	default:
		return 0, fmt.Errorf("no HMAC key size for %q", method)
	}
}

// NewSecret returns size random bytes.
func NewSecret(size int) ([]byte, error) {
	if size < MinSecretSize {
		return nil, errors.New("secret must be at least 256 bits")
	}
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// EncodeSecret renders key in the "base64:" form read by the config loader.
func EncodeSecret(key []byte) string {
	return "base64:" + base64.StdEncoding.EncodeToString(key)
}

// NewEd25519Key returns a fresh key pair in raw form.
func NewEd25519Key() (private []byte, public []byte, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}
