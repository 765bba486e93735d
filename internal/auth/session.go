package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	SessionCookieName = "auth_token"
	DefaultSessionTTL = 7 * 24 * time.Hour

	tokenSeparator = "."
)

// CookieAttributes mirrors the subset of cookie attributes the session needs.
type CookieAttributes struct {
	MaxAge   int
	Path     string
	HTTPOnly bool
	Secure   bool
	SameSite http.SameSite
}

type CookieReader interface {
	Cookie(name string) (string, bool)
}

type CookieWriter interface {
	SetCookie(name, value string, attrs CookieAttributes)
	DeleteCookie(name string, attrs CookieAttributes)
}

type SessionOptions struct {
	TTL           time.Duration
	SecureCookies bool
}

// SessionManager issues and reads the signed auth cookie. It keeps no per-session state.
type SessionManager struct {
	signer  *Signer
	ttl     time.Duration
	secure  bool
	nowFunc func() time.Time
}

func NewSessionManager(secret string, opts SessionOptions) (*SessionManager, error) {
	signer, err := NewSigner(secret)
	if err != nil {
		return nil, err
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	return &SessionManager{
		signer:  signer,
		ttl:     ttl,
		secure:  opts.SecureCookies,
		nowFunc: time.Now,
	}, nil
}

func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

func (m *SessionManager) Issue(w CookieWriter, identity Identity) (SessionPayload, error) {
	payload := SessionPayload{
		SubjectID: identity.ID,
		Username:  identity.Username,
		ExpiresAt: m.nowFunc().Add(m.ttl).UnixMilli(),
	}

	token, err := m.encodeToken(payload)
	if err != nil {
		return SessionPayload{}, err
	}

	w.SetCookie(SessionCookieName, token, m.attributes(int(m.ttl.Seconds())))
	return payload, nil
}

// CurrentIdentity returns the caller's identity when the cookie is present, well formed,
// correctly signed and unexpired. Any other state is reported as anonymous.
func (m *SessionManager) CurrentIdentity(r CookieReader) (Identity, bool) {
	token, ok := r.Cookie(SessionCookieName)
	if !ok || token == "" {
		return Identity{}, false
	}

	payload, err := m.decodeToken(token)
	if err != nil {
		return Identity{}, false
	}
	if m.nowFunc().UnixMilli() > payload.ExpiresAt {
		return Identity{}, false
	}

	return payload.Identity(), true
}

func (m *SessionManager) RequireIdentity(r CookieReader) (Identity, error) {
	identity, ok := m.CurrentIdentity(r)
	if !ok {
		return Identity{}, ErrUnauthorized
	}
	return identity, nil
}

func (m *SessionManager) Revoke(w CookieWriter) {
	w.DeleteCookie(SessionCookieName, m.attributes(-1))
}

func (m *SessionManager) encodeToken(payload SessionPayload) (string, error) {
	encoded, err := EncodePayload(payload)
	if err != nil {
		return "", fmt.Errorf("issue session: %w", err)
	}
	return encoded + tokenSeparator + m.signer.Sign(encoded), nil
}

func (m *SessionManager) decodeToken(token string) (SessionPayload, error) {
	encoded, signature, found := strings.Cut(token, tokenSeparator)
	if !found || encoded == "" || signature == "" {
		return SessionPayload{}, ErrMalformedToken
	}
	if !m.signer.Verify(encoded, signature) {
		return SessionPayload{}, ErrMalformedToken
	}
	return DecodePayload(encoded)
}

func (m *SessionManager) attributes(maxAge int) CookieAttributes {
	return CookieAttributes{
		MaxAge:   maxAge,
		Path:     "/",
		HTTPOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// HTTPCookies adapts a request/response pair to the cookie capability interfaces.
// Either side may be nil when only reading or only writing.
type HTTPCookies struct {
	w http.ResponseWriter
	r *http.Request
}

func NewHTTPCookies(w http.ResponseWriter, r *http.Request) HTTPCookies {
	return HTTPCookies{w: w, r: r}
}

func (c HTTPCookies) Cookie(name string) (string, bool) {
	if c.r == nil {
		return "", false
	}
	cookie, err := c.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return cookie.Value, true
}

func (c HTTPCookies) SetCookie(name, value string, attrs CookieAttributes) {
	http.SetCookie(c.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     attrs.Path,
		MaxAge:   attrs.MaxAge,
		HttpOnly: attrs.HTTPOnly,
		Secure:   attrs.Secure,
		SameSite: attrs.SameSite,
	})
}

func (c HTTPCookies) DeleteCookie(name string, attrs CookieAttributes) {
	if attrs.MaxAge >= 0 {
		attrs.MaxAge = -1
	}
	http.SetCookie(c.w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     attrs.Path,
		MaxAge:   attrs.MaxAge,
		Expires:  time.Unix(0, 0),
		HttpOnly: attrs.HTTPOnly,
		Secure:   attrs.Secure,
		SameSite: attrs.SameSite,
	})
}
