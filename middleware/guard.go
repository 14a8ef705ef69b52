package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	goToken "github.com/MrEthical07/goToken"
)

type payloadContextKey struct{}

type tokenContextKey struct{}

// PayloadFromContext returns the payload stored by Guard or Optional.
func PayloadFromContext(ctx context.Context) (*goToken.Payload, bool) {
	p, ok := ctx.Value(payloadContextKey{}).(*goToken.Payload)
	return p, ok && p != nil
}

// TokenFromContext returns the raw token that produced the stored payload.
func TokenFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tokenContextKey{}).(string)
	return t, ok && t != ""
}

// Guard rejects requests without a token that passes engine.Authenticate.
// With no parsers, DefaultParsers is used.
func Guard(engine *goToken.Engine, parsers ...Parser) func(http.Handler) http.Handler {
	parser := chainOf(parsers)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			raw, ok := parser.Parse(r)
			if !ok {
				unauthorized(w, "")
				return
			}

			ctx := withRemoteIP(r)
			p, err := engine.Authenticate(ctx, raw)
			if err != nil {
				unauthorized(w, errorCode(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(withPayload(ctx, raw, p)))
		})
	}
}

// Optional authenticates when a token is present. Requests without a token
// pass through anonymously; a present but invalid token is still rejected.
func Optional(engine *goToken.Engine, parsers ...Parser) func(http.Handler) http.Handler {
	parser := chainOf(parsers)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := parser.Parse(r)
			if !ok || engine == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := withRemoteIP(r)
			p, err := engine.Authenticate(ctx, raw)
			if err != nil {
				unauthorized(w, errorCode(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(withPayload(ctx, raw, p)))
		})
	}
}

func chainOf(parsers []Parser) Parser {
	if len(parsers) == 0 {
		return DefaultParsers()
	}
	if len(parsers) == 1 {
		return parsers[0]
	}
	return Chain(parsers)
}

func withPayload(ctx context.Context, raw string, p *goToken.Payload) context.Context {
	ctx = context.WithValue(ctx, payloadContextKey{}, p)
	return context.WithValue(ctx, tokenContextKey{}, raw)
}

func withRemoteIP(r *http.Request) context.Context {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		return r.Context()
	}
	return goToken.WithClientIP(r.Context(), host)
}

// unauthorized writes a 401 with an RFC 6750 challenge. code is empty when
// the request carried no token.
func unauthorized(w http.ResponseWriter, code string) {
	challenge := `Bearer realm="gotoken"`
	if code != "" {
		challenge += `, error="` + code + `"`
	}
	w.Header().Set("WWW-Authenticate", challenge)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func errorCode(err error) string {
	if errors.Is(err, goToken.ErrTokenExpired) || errors.Is(err, goToken.ErrTokenInvalid) {
		return "invalid_token"
	}
	return "invalid_request"
}
