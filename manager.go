package goToken

import (
	"context"
	"errors"
)

const (
	msgCheckBlacklist = "Could not check the blacklist"
	msgInvalidate     = "Could not invalidate the token"
)

// Revoker is the part of the blacklist the Manager depends on.
type Revoker interface {
	Has(ctx context.Context, p *Payload) (bool, error)
	// Add lists p and reports whether this call wrote the entry.
	Add(ctx context.Context, p *Payload) (bool, error)
	AddForever(ctx context.Context, p *Payload) error
}

// Manager coordinates encode, decode, refresh and invalidate.
//
// Manager holds no mutable state after construction and is safe for
// concurrent use when its collaborators are. It never retries: the first
// failure is returned to the caller.
type Manager struct {
	codec            TokenCodec
	blacklist        Revoker
	builder          *PayloadBuilder
	blacklistEnabled bool
}

// NewManager wires the lifecycle collaborators. blacklist may be nil only
// when the builder's options disable the blacklist.
func NewManager(codec TokenCodec, blacklist Revoker, builder *PayloadBuilder) (*Manager, error) {
	if codec == nil {
		return nil, errors.New("token codec is nil")
	}
	if builder == nil {
		return nil, errors.New("payload builder is nil")
	}
	enabled := builder.Options().BlacklistEnabled
	if enabled && blacklist == nil {
		return nil, errors.New("blacklist enabled without a blacklist")
	}
	return &Manager{
		codec:            codec,
		blacklist:        blacklist,
		builder:          builder,
		blacklistEnabled: enabled,
	}, nil
}

// Encode signs p into a token.
func (m *Manager) Encode(p *Payload) (Token, error) {
	raw, err := m.codec.Encode(p.ToMap())
	if err != nil {
		return Token{}, wrapError(KindJWT, "Could not create token", err)
	}
	return NewToken(raw)
}

// Decode verifies t and returns its payload. A blacklisted token fails with
// KindTokenBlacklisted when the blacklist is enabled.
func (m *Manager) Decode(ctx context.Context, t Token) (*Payload, error) {
	return m.decode(ctx, t, true, false)
}

// DecodeWithoutBlacklist verifies t without consulting the blacklist.
func (m *Manager) DecodeWithoutBlacklist(ctx context.Context, t Token) (*Payload, error) {
	return m.decode(ctx, t, false, false)
}

// DecodeForRefresh verifies t under the refresh rules: exp is ignored when a
// max refresh period is configured, the period itself is enforced on iat.
// The blacklist is not consulted.
func (m *Manager) DecodeForRefresh(ctx context.Context, t Token) (*Payload, error) {
	return m.decode(ctx, t, false, true)
}

// refreshable is DecodeForRefresh gated by the blacklist.
func (m *Manager) refreshable(ctx context.Context, t Token) (*Payload, error) {
	return m.decode(ctx, t, true, true)
}

func (m *Manager) decode(ctx context.Context, t Token, checkBlacklist, refreshFlow bool) (*Payload, error) {
	if err := CheckToken(t.value); err != nil {
		return nil, err
	}
	raw, err := m.codec.Decode(t.value)
	if err != nil {
		return nil, wrapError(KindTokenInvalid, "Could not decode token", err)
	}
	p, err := m.builder.Decode(raw, refreshFlow)
	if err != nil {
		return nil, err
	}

	if checkBlacklist && m.blacklistEnabled {
		listed, err := m.blacklist.Has(ctx, p)
		if err != nil {
			return nil, wrapError(KindJWT, msgCheckBlacklist, err)
		}
		if listed {
			return nil, newError(KindTokenBlacklisted, "The token has been blacklisted")
		}
	}
	return p, nil
}

// Refresh exchanges t for a new token carrying the same subject and custom
// claims with fresh iat, nbf, exp and jti. The old token is invalidated when
// the blacklist is enabled; if that fails the new token is discarded.
//
// Refresh is not idempotent: a successful refresh consumes t.
func (m *Manager) Refresh(ctx context.Context, t Token) (Token, error) {
	token, _, _, err := m.refresh(ctx, t)
	return token, err
}

// refresh returns the consumed payload and its replacement alongside the
// new token.
func (m *Manager) refresh(ctx context.Context, t Token) (Token, *Payload, *Payload, error) {
	old, err := m.refreshable(ctx, t)
	if err != nil {
		return Token{}, nil, nil, err
	}

	next, err := m.builder.Make(m.builder.BuildRefreshClaims(old))
	if err != nil {
		return Token{}, old, nil, err
	}
	token, err := m.Encode(next)
	if err != nil {
		return Token{}, old, nil, err
	}

	if m.blacklistEnabled {
		consumed, err := m.blacklist.Add(ctx, old)
		if err != nil {
			return Token{}, old, nil, wrapError(KindJWT, msgInvalidate, err)
		}
		if !consumed {
			// Another refresh or an invalidation listed the token first.
			return Token{}, old, nil, newError(KindTokenBlacklisted, "The token has been blacklisted")
		}
	}
	return token, old, next, nil
}

// Invalidate adds t to the blacklist. The blacklist itself is not consulted,
// so an already listed token can be invalidated again.
func (m *Manager) Invalidate(ctx context.Context, t Token) error {
	_, err := m.invalidate(ctx, t, false)
	return err
}

// InvalidateForever adds t to the blacklist with no expiry.
func (m *Manager) InvalidateForever(ctx context.Context, t Token) error {
	_, err := m.invalidate(ctx, t, true)
	return err
}

func (m *Manager) invalidate(ctx context.Context, t Token, forever bool) (*Payload, error) {
	if !m.blacklistEnabled {
		return nil, ErrBlacklistDisabled
	}
	p, err := m.DecodeWithoutBlacklist(ctx, t)
	if err != nil {
		return nil, err
	}
	if forever {
		err = m.blacklist.AddForever(ctx, p)
	} else {
		_, err = m.blacklist.Add(ctx, p)
	}
	if err != nil {
		return p, wrapError(KindJWT, msgInvalidate, err)
	}
	return p, nil
}

// isStoreFailure reports whether err came from the blacklist store rather
// than from the token.
func isStoreFailure(err error) bool {
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindJWT || e.Err == nil {
		return false
	}
	return e.Message == msgCheckBlacklist || e.Message == msgInvalidate
}

// TokenForSubject issues a token for sub with extra claims.
func (m *Manager) TokenForSubject(sub Subject, claims map[string]any) (Token, error) {
	p, err := m.builder.MakeForSubject(sub, claims)
	if err != nil {
		return Token{}, err
	}
	return m.Encode(p)
}

// Builder returns the payload builder.
func (m *Manager) Builder() *PayloadBuilder {
	return m.builder
}

// BlacklistEnabled reports whether invalidation is available.
func (m *Manager) BlacklistEnabled() bool {
	return m.blacklistEnabled
}
