package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode"
)

// DefaultKey is the parameter name used by QueryString, InputSource and
// Cookies when Key is empty.
const DefaultKey = "token"

const maxInputBody = 1 << 20

// Parser extracts a raw token from a request. ok is false when the request
// carries no candidate.
type Parser interface {
	Parse(r *http.Request) (token string, ok bool)
}

// ParserFunc adapts a plain function to Parser.
type ParserFunc func(r *http.Request) (string, bool)

func (f ParserFunc) Parse(r *http.Request) (string, bool) { return f(r) }

// Chain tries each parser in order.
type Chain []Parser

func (c Chain) Parse(r *http.Request) (string, bool) {
	for _, p := range c {
		if p == nil {
			continue
		}
		if token, ok := p.Parse(r); ok {
			return token, true
		}
	}
	return "", false
}

// DefaultParsers returns the standard lookup order.
func DefaultParsers() Chain {
	return Chain{
		AuthHeaders{},
		QueryString{},
		InputSource{},
		Cookies{},
	}
}

// AuthHeaders reads "<Prefix> <token>" from Header, then from AltHeaders
// when Header is absent. Defaults: Authorization and bearer. The prefix is
// matched case-insensitively anywhere in the value and the separating
// whitespace is optional.
type AuthHeaders struct {
	Header     string
	Prefix     string
	AltHeaders []string
}

func (a AuthHeaders) Parse(r *http.Request) (string, bool) {
	header := a.Header
	if header == "" {
		header = "Authorization"
	}
	value := r.Header.Get(header)
	for _, alt := range a.AltHeaders {
		if value != "" {
			break
		}
		value = r.Header.Get(alt)
	}
	if value == "" {
		return "", false
	}

	prefix := a.Prefix
	if prefix == "" {
		prefix = "bearer"
	}
	i := strings.Index(strings.ToLower(value), strings.ToLower(prefix))
	if i < 0 {
		return "", false
	}
	rest := strings.TrimLeftFunc(value[i+len(prefix):], unicode.IsSpace)
	if end := strings.IndexFunc(rest, unicode.IsSpace); end >= 0 {
		rest = rest[:end]
	}
	return rest, rest != ""
}

// QueryString reads the token from the URL query.
type QueryString struct {
	Key string
}

func (q QueryString) Parse(r *http.Request) (string, bool) {
	v := r.URL.Query().Get(keyOrDefault(q.Key))
	return v, v != ""
}

// InputSource reads the token from a urlencoded or multipart form field, or
// from a top-level string field of a JSON object body. The body is restored
// after reading so handlers can consume it again.
type InputSource struct {
	Key string
}

func (in InputSource) Parse(r *http.Request) (string, bool) {
	if r.Body == nil || r.Body == http.NoBody {
		return "", false
	}
	key := keyOrDefault(in.Key)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		body, err := io.ReadAll(io.LimitReader(r.Body, maxInputBody))
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))
		if err != nil {
			return "", false
		}
		var fields map[string]json.RawMessage
		if json.Unmarshal(body, &fields) != nil {
			return "", false
		}
		var v string
		if raw, ok := fields[key]; !ok || json.Unmarshal(raw, &v) != nil || v == "" {
			return "", false
		}
		return v, true
	case mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data":
		v := r.PostFormValue(key)
		return v, v != ""
	default:
		return "", false
	}
}

// Cookies reads the token from a cookie. Decode, when set, transforms the
// cookie value (for example to decrypt it); a Decode error counts as no token.
type Cookies struct {
	Key    string
	Decode func(string) (string, error)
}

func (c Cookies) Parse(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(keyOrDefault(c.Key))
	if err != nil || cookie.Value == "" {
		return "", false
	}
	if c.Decode == nil {
		return cookie.Value, true
	}
	v, err := c.Decode(cookie.Value)
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

func keyOrDefault(key string) string {
	if key == "" {
		return DefaultKey
	}
	return key
}
