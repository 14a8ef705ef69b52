package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the signature algorithm of a Codec.
type SigningMethod string

const (
	// MethodEd25519 signs with EdDSA over Ed25519 keys.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with HMAC-SHA256.
	MethodHS256 SigningMethod = "hs256"
	// MethodHS384 signs with HMAC-SHA384.
	MethodHS384 SigningMethod = "hs384"
	// MethodHS512 signs with HMAC-SHA512.
	MethodHS512 SigningMethod = "hs512"
)

// minHMACKeyLen is the shortest accepted HMAC secret.
const minHMACKeyLen = 32

// Config defines the key material of a Codec.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	SigningMethod SigningMethod
	// PrivateKey is the HMAC secret, or the Ed25519 private key (raw or PEM).
	PrivateKey []byte
	// PublicKey is the Ed25519 verification key (raw or PEM).
	PublicKey []byte
	// KeyID is written to the kid header and required on decode.
	KeyID string
	// VerifyKeys maps kid to verification key. When set, decode selects the
	// key by the token's kid header.
	VerifyKeys map[string][]byte
}

// Codec signs claim maps into compact JWS tokens and verifies them back.
//
// Codec checks signatures and algorithms only. Temporal and required claim
// rules belong to the lifecycle core.
type Codec struct {
	config Config
	method jwt.SigningMethod
}

// NewCodec validates cfg and returns a Codec.
//
// NewCodec does not mutate shared global state and the returned Codec can be used concurrently.
func NewCodec(cfg Config) (*Codec, error) {
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	cfg.SigningMethod = SigningMethod(strings.ToLower(string(cfg.SigningMethod)))

	switch cfg.SigningMethod {
	case MethodHS256, MethodHS384, MethodHS512:
		if len(cfg.PrivateKey) == 0 {
			return nil, fmt.Errorf("%s requires private key", cfg.SigningMethod)
		}
		if len(cfg.PrivateKey) < minHMACKeyLen {
			return nil, fmt.Errorf("%s secret must be at least %d bytes", cfg.SigningMethod, minHMACKeyLen)
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	c := &Codec{config: cfg, method: methodFor(cfg.SigningMethod)}
	for kid, key := range cfg.VerifyKeys {
		if strings.TrimSpace(kid) == "" {
			return nil, errors.New("verify key map contains empty kid")
		}
		if _, err := c.keyBytesToVerifyKey(key); err != nil {
			return nil, fmt.Errorf("invalid verify key for kid %q: %w", kid, err)
		}
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}
	return c, nil
}

// Algorithm returns the JWS alg header value.
func (c *Codec) Algorithm() string {
	return c.method.Alg()
}

// Encode signs claims.
func (c *Codec) Encode(claims map[string]any) (string, error) {
	signKey, err := c.getSignKey()
	if err != nil {
		return "", err
	}
	token := jwt.NewWithClaims(c.method, jwt.MapClaims(claims))
	if c.config.KeyID != "" {
		token.Header["kid"] = c.config.KeyID
	}
	return token.SignedString(signKey)
}

// Decode verifies the signature of tokenStr and returns its claims. Numbers
// are returned as json.Number so integer claims survive unchanged.
func (c *Codec) Decode(tokenStr string) (map[string]any, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithoutClaimsValidation(),
		jwt.WithJSONNumber(),
	)
	token, err := parser.Parse(tokenStr, c.keyFunc)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return map[string]any(claims), nil
}

func (c *Codec) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != c.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	if len(c.config.VerifyKeys) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := c.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return c.keyBytesToVerifyKey(key)
	}

	if c.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		if kid != c.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}

	return c.getVerifyKey()
}

func methodFor(m SigningMethod) jwt.SigningMethod {
	switch m {
	case MethodHS256:
		return jwt.SigningMethodHS256
	case MethodHS384:
		return jwt.SigningMethodHS384
	case MethodHS512:
		return jwt.SigningMethodHS512
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (c *Codec) isHMAC() bool {
	return c.config.SigningMethod != MethodEd25519
}

func (c *Codec) getSignKey() (interface{}, error) {
	if c.isHMAC() {
		return c.config.PrivateKey, nil
	}
	if len(c.config.PrivateKey) == 0 {
		return nil, errors.New("codec has no private key")
	}
	return parseEdPrivateKey(c.config.PrivateKey)
}

func (c *Codec) getVerifyKey() (interface{}, error) {
	if c.isHMAC() {
		return c.config.PrivateKey, nil
	}
	return parseEdPublicKey(c.config.PublicKey)
}

func (c *Codec) keyBytesToVerifyKey(key []byte) (interface{}, error) {
	if c.isHMAC() {
		return key, nil
	}
	return parseEdPublicKey(key)
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
