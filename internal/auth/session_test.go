package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cookieJar is an in-memory CookieReader and CookieWriter.
type cookieJar struct {
	values  map[string]string
	attrs   map[string]CookieAttributes
	deleted map[string]bool
}

func newCookieJar() *cookieJar {
	return &cookieJar{
		values:  map[string]string{},
		attrs:   map[string]CookieAttributes{},
		deleted: map[string]bool{},
	}
}

func (j *cookieJar) Cookie(name string) (string, bool) {
	v, ok := j.values[name]
	return v, ok
}

func (j *cookieJar) SetCookie(name, value string, attrs CookieAttributes) {
	j.values[name] = value
	j.attrs[name] = attrs
	delete(j.deleted, name)
}

func (j *cookieJar) DeleteCookie(name string, attrs CookieAttributes) {
	delete(j.values, name)
	j.attrs[name] = attrs
	j.deleted[name] = true
}

func newTestSessions(t *testing.T, now *time.Time) *SessionManager {
	t.Helper()
	sessions, err := NewSessionManager("test-secret", SessionOptions{})
	require.NoError(t, err)
	if now != nil {
		sessions.nowFunc = func() time.Time { return *now }
	}
	return sessions
}

var alice = Identity{ID: "u-1", Username: "alice"}

func TestNewSessionManager_EmptySecret(t *testing.T) {
	_, err := NewSessionManager("", SessionOptions{})
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestSession_IssueThenRead(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sessions := newTestSessions(t, &now)
	jar := newCookieJar()

	payload, err := sessions.Issue(jar, alice)
	require.NoError(t, err)
	assert.Equal(t, now.Add(7*24*time.Hour).UnixMilli(), payload.ExpiresAt)

	token, ok := jar.Cookie(SessionCookieName)
	require.True(t, ok)
	encoded, sig, found := strings.Cut(token, ".")
	require.True(t, found)
	assert.Len(t, sig, 64)
	decoded, err := DecodePayload(encoded)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)

	identity, ok := sessions.CurrentIdentity(jar)
	require.True(t, ok)
	assert.Equal(t, alice, identity)
}

func TestSession_CookieAttributes(t *testing.T) {
	sessions := newTestSessions(t, nil)
	jar := newCookieJar()

	_, err := sessions.Issue(jar, alice)
	require.NoError(t, err)

	assert.Equal(t, CookieAttributes{
		MaxAge:   604800,
		Path:     "/",
		HTTPOnly: true,
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
	}, jar.attrs[SessionCookieName])

	secure, err := NewSessionManager("test-secret", SessionOptions{SecureCookies: true})
	require.NoError(t, err)
	_, err = secure.Issue(jar, alice)
	require.NoError(t, err)
	assert.True(t, jar.attrs[SessionCookieName].Secure)
}

func TestSession_Expiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sessions := newTestSessions(t, &now)
	jar := newCookieJar()

	payload, err := sessions.Issue(jar, alice)
	require.NoError(t, err)

	now = time.UnixMilli(payload.ExpiresAt)
	_, ok := sessions.CurrentIdentity(jar)
	assert.True(t, ok, "a token is valid up to and including its expiry instant")

	now = time.UnixMilli(payload.ExpiresAt + 1)
	_, ok = sessions.CurrentIdentity(jar)
	assert.False(t, ok)

	_, err = sessions.RequireIdentity(jar)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestSession_MissingCookie(t *testing.T) {
	sessions := newTestSessions(t, nil)

	identity, ok := sessions.CurrentIdentity(newCookieJar())
	assert.False(t, ok)
	assert.Equal(t, Identity{}, identity)
}

func TestSession_TamperedTokens(t *testing.T) {
	sessions := newTestSessions(t, nil)
	jar := newCookieJar()
	_, err := sessions.Issue(jar, alice)
	require.NoError(t, err)
	token := jar.values[SessionCookieName]
	encoded, sig, _ := strings.Cut(token, ".")

	forged, err := EncodePayload(SessionPayload{SubjectID: "u-2", Username: "mallory", ExpiresAt: time.Now().Add(time.Hour).UnixMilli()})
	require.NoError(t, err)

	other, err := NewSessionManager("other-secret", SessionOptions{})
	require.NoError(t, err)
	otherJar := newCookieJar()
	_, err = other.Issue(otherJar, alice)
	require.NoError(t, err)

	cases := map[string]string{
		"no separator":      encoded + sig,
		"empty signature":   encoded + ".",
		"empty payload":     "." + sig,
		"swapped payload":   forged + "." + sig,
		"foreign secret":    otherJar.values[SessionCookieName],
		"garbage":           "not-a-token",
		"extra segment":     token + ".extra",
		"uppercase sig":     encoded + "." + strings.ToUpper(sig),
		"truncated payload": encoded[:len(encoded)-2] + "." + sig,
	}

	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			tampered := newCookieJar()
			tampered.values[SessionCookieName] = value
			_, ok := sessions.CurrentIdentity(tampered)
			assert.False(t, ok)
		})
	}
}

func TestSession_RevokeIsIdempotent(t *testing.T) {
	sessions := newTestSessions(t, nil)
	jar := newCookieJar()
	_, err := sessions.Issue(jar, alice)
	require.NoError(t, err)

	sessions.Revoke(jar)
	sessions.Revoke(jar)

	assert.True(t, jar.deleted[SessionCookieName])
	assert.Negative(t, jar.attrs[SessionCookieName].MaxAge)
	_, ok := sessions.CurrentIdentity(jar)
	assert.False(t, ok)
}

func TestHTTPCookies_WritesSetCookieHeaders(t *testing.T) {
	sessions := newTestSessions(t, nil)
	rec := httptest.NewRecorder()

	_, err := sessions.Issue(NewHTTPCookies(rec, nil), alice)
	require.NoError(t, err)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, SessionCookieName, c.Name)
	assert.Equal(t, 604800, c.MaxAge)
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: c.Value})
	identity, ok := sessions.CurrentIdentity(NewHTTPCookies(nil, req))
	require.True(t, ok)
	assert.Equal(t, alice, identity)

	rec = httptest.NewRecorder()
	sessions.Revoke(NewHTTPCookies(rec, req))
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}
