package goToken

// Token is a compact serialized token. A non-zero Token always has three
// non-empty dot separated segments.
type Token struct {
	value string
}

// NewToken wraps s after checking its wire shape.
func NewToken(s string) (Token, error) {
	if err := CheckToken(s); err != nil {
		return Token{}, err
	}
	return Token{value: s}, nil
}

// String returns the compact form.
func (t Token) String() string { return t.value }

// IsZero reports whether t was never set.
func (t Token) IsZero() bool { return t.value == "" }

// TokenCodec signs claims into a compact token and verifies a compact token
// back into raw claims. Decode must reject bad signatures and unexpected
// algorithms; claim semantics are checked by the caller.
type TokenCodec interface {
	Encode(claims map[string]any) (string, error)
	Decode(token string) (map[string]any, error)
}
