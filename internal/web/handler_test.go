// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package web_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/storefront/storefront/internal/auth"
	"github.com/storefront/storefront/internal/auth/memstore"
	"github.com/storefront/storefront/internal/observability"
	"github.com/storefront/storefront/internal/web"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stack is a handler wired to real auth services over in-memory stores.
type stack struct {
	accounts *memstore.AccountRepository
	sessions *memstore.SessionRepository
	manager  *auth.SessionManager
	metrics  *observability.Metrics
	server   *httptest.Server
}

func newStack(t *testing.T) *stack {
	t.Helper()
	logger := discardLogger()

	hasher, err := auth.NewPasswordHasher(auth.AlgorithmBcrypt, bcrypt.MinCost)
	require.NoError(t, err)

	accounts := memstore.NewAccountRepository()
	sessions := memstore.NewSessionRepository()

	registrar, err := auth.NewRegistrar(accounts, hasher, logger)
	require.NoError(t, err)
	authenticator, err := auth.NewAuthenticator(accounts, hasher, logger)
	require.NoError(t, err)
	identities, err := auth.NewIdentityMapper(accounts)
	require.NoError(t, err)
	manager, err := auth.NewSessionManager(sessions, identities, logger)
	require.NoError(t, err)

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	h, err := web.NewHandler(registrar, authenticator, manager, logger, web.Options{Metrics: metrics})
	require.NoError(t, err)

	server := httptest.NewServer(h.Routes())
	t.Cleanup(server.Close)

	return &stack{accounts: accounts, sessions: sessions, manager: manager, metrics: metrics, server: server}
}

// client returns a cookie-keeping client that does not follow redirects.
func (s *stack) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func postForm(t *testing.T, c *http.Client, target, email, password string) (*http.Response, string) {
	t.Helper()
	resp, err := c.PostForm(target, url.Values{"email": {email}, "password": {password}})
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func get(t *testing.T, c *http.Client, target string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Get(target)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == web.DefaultCookieName {
			return c
		}
	}
	return nil
}

func TestHandler_RegisterLoginShopLogout(t *testing.T) {
	s := newStack(t)
	c := s.client(t)
	base := s.server.URL

	resp, _ := postForm(t, c, base+"/register", "a@x.io", "pw1")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, body := postForm(t, c, base+"/register", "a@x.io", "other")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body, "Email taken.")
	assert.Equal(t, 1, s.accounts.Len())

	resp, _ = postForm(t, c, base+"/login", "a@x.io", "pw1")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/shop", resp.Header.Get("Location"))
	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, int(time.Hour.Seconds()), cookie.MaxAge)
	assert.Equal(t, 1, s.sessions.Len())

	resp, body = get(t, c, base+"/shop")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Signed in as a@x.io")

	resp, body = get(t, c, base+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Welcome, a@x.io")

	resp, _ = postForm(t, c, base+"/logout", "", "")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Equal(t, 0, s.sessions.Len())

	resp, _ = get(t, c, base+"/shop")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	assert.InDelta(t, 1, testutil.ToFloat64(s.metrics.AuthAttempts.WithLabelValues("register", observability.OutcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(s.metrics.AuthAttempts.WithLabelValues("register", observability.OutcomeDuplicate)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(s.metrics.AuthAttempts.WithLabelValues("login", observability.OutcomeSuccess)), 0)
}

func TestHandler_LoginFailuresLookIdentical(t *testing.T) {
	s := newStack(t)
	c := s.client(t)
	base := s.server.URL

	resp, _ := postForm(t, c, base+"/register", "a@x.io", "pw1")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	wrong, wrongBody := postForm(t, c, base+"/login", "a@x.io", "nope")
	unknown, unknownBody := postForm(t, c, base+"/login", "b@x.io", "pw1")

	assert.Equal(t, wrong.StatusCode, unknown.StatusCode)
	assert.Equal(t, http.StatusSeeOther, wrong.StatusCode)
	assert.Equal(t, "/login", wrong.Header.Get("Location"))
	assert.Equal(t, wrong.Header.Get("Location"), unknown.Header.Get("Location"))
	assert.Equal(t, wrongBody, unknownBody)
	assert.Nil(t, sessionCookie(wrong))
	assert.Nil(t, sessionCookie(unknown))
	assert.Equal(t, 0, s.sessions.Len())
}

func TestHandler_RegisterEmptyFields(t *testing.T) {
	s := newStack(t)
	c := s.client(t)

	for _, tc := range []struct{ name, email, password string }{
		{"empty email", "", "pw"},
		{"empty password", "a@x.io", ""},
		{"both empty", "", ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := postForm(t, c, s.server.URL+"/register", tc.email, tc.password)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, body, "Username or password cannot be empty.")
		})
	}
	assert.Equal(t, 0, s.accounts.Len())
}

func TestHandler_RegisterPasswordTooLong(t *testing.T) {
	s := newStack(t)
	resp, body := postForm(t, s.client(t), s.server.URL+"/register", "a@x.io", strings.Repeat("p", 73))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "Password is too long.")
	assert.Equal(t, 0, s.accounts.Len())
}

func TestHandler_ShopRequiresSession(t *testing.T) {
	s := newStack(t)
	resp, _ := get(t, s.client(t), s.server.URL+"/shop")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestHandler_HomeAnonymous(t *testing.T) {
	s := newStack(t)
	resp, body := get(t, s.client(t), s.server.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Log in to browse the shop.")
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestHandler_Forms(t *testing.T) {
	s := newStack(t)
	c := s.client(t)
	for path, action := range map[string]string{"/login": `action="/login"`, "/register": `action="/register"`} {
		resp, body := get(t, c, s.server.URL+path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Contains(t, body, action, path)
		assert.Contains(t, body, `name="email"`, path)
	}
}

func TestHandler_InvalidCookieIsCleared(t *testing.T) {
	s := newStack(t)

	req := httptest.NewRequest(http.MethodGet, "/shop", nil)
	req.AddCookie(&http.Cookie{Name: web.DefaultCookieName, Value: "forged"})
	rec := httptest.NewRecorder()
	s.server.Config.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	cleared := sessionCookie(rec.Result())
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)
	assert.InDelta(t, 1, testutil.ToFloat64(s.metrics.SessionsResolved.WithLabelValues("anonymous")), 0)
}

// unavailableSessions resolves every token as a store outage.
type unavailableSessions struct{}

func (unavailableSessions) Issue(context.Context, *auth.Account) (string, *auth.Session, error) {
	return "", nil, auth.ErrStoreUnavailable
}

func (unavailableSessions) Resolve(context.Context, string) auth.Identity {
	return auth.Identity{Status: auth.SessionUnavailable}
}

func (unavailableSessions) Revoke(context.Context, string) error { return nil }

func (unavailableSessions) TTL() time.Duration { return time.Hour }

func TestHandler_StoreOutageKeepsCookie(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	h, err := web.NewHandler(stubRegistrar{}, stubAuthenticator{}, unavailableSessions{}, discardLogger(), web.Options{Metrics: metrics})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/shop", nil)
	req.AddCookie(&http.Cookie{Name: web.DefaultCookieName, Value: "still-good"})
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Nil(t, sessionCookie(rec.Result()), "cookie must survive a store outage")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SessionsResolved.WithLabelValues("anonymous")), 0)
}

func TestHandler_DeletedAccountLosesSession(t *testing.T) {
	s := newStack(t)
	c := s.client(t)
	base := s.server.URL

	postForm(t, c, base+"/register", "a@x.io", "pw1")
	resp, _ := postForm(t, c, base+"/login", "a@x.io", "pw1")
	require.Equal(t, "/shop", resp.Header.Get("Location"))

	acct, err := s.accounts.GetByEmail(context.Background(), "a@x.io")
	require.NoError(t, err)
	require.NoError(t, s.accounts.Delete(context.Background(), acct.ID))

	resp, _ = get(t, c, base+"/shop")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.Equal(t, 0, s.sessions.Len())
}

func TestHandler_LoginReplacesExistingSession(t *testing.T) {
	s := newStack(t)
	c := s.client(t)
	base := s.server.URL

	postForm(t, c, base+"/register", "a@x.io", "pw1")
	first, _ := postForm(t, c, base+"/login", "a@x.io", "pw1")
	second, _ := postForm(t, c, base+"/login", "a@x.io", "pw1")

	require.NotNil(t, sessionCookie(first))
	require.NotNil(t, sessionCookie(second))
	assert.NotEqual(t, sessionCookie(first).Value, sessionCookie(second).Value)
	assert.Equal(t, 1, s.sessions.Len())
	assert.False(t, s.manager.Resolve(context.Background(), sessionCookie(first).Value).Authenticated())
}

// stubRegistrar returns a fixed error.
type stubRegistrar struct{ err error }

func (r stubRegistrar) Register(context.Context, string, string) (*auth.Account, error) {
	return nil, r.err
}

type stubAuthenticator struct{}

func (stubAuthenticator) Authenticate(context.Context, string, string) (*auth.Account, error) {
	return nil, auth.ErrInvalidCredentials
}

func TestHandler_RegisterErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"duplicate", oops.Code("ACCOUNT_DUPLICATE_EMAIL").Wrap(auth.ErrDuplicateEmail), http.StatusConflict, "Email taken."},
		{"missing field", oops.Code("ACCOUNT_MISSING_FIELD").Wrap(auth.ErrMissingField), http.StatusBadRequest, "Username or password cannot be empty."},
		{"too long", oops.Code("AUTH_PASSWORD_TOO_LONG").Wrap(auth.ErrPasswordTooLong), http.StatusBadRequest, "Password is too long."},
		{"store unavailable", oops.Code("ACCOUNT_INSERT_FAILED").Wrap(auth.ErrStoreUnavailable), http.StatusInternalServerError, "Server error. Please contact an administrator."},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "Server error. Please contact an administrator."},
		{"hashing", oops.Code("AUTH_HASH_FAILED").Wrap(auth.ErrHashing), http.StatusInternalServerError, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := memstore.NewSessionRepository()
			identities, err := auth.NewIdentityMapper(memstore.NewAccountRepository())
			require.NoError(t, err)
			manager, err := auth.NewSessionManager(sessions, identities, discardLogger())
			require.NoError(t, err)

			h, err := web.NewHandler(stubRegistrar{err: tt.err}, stubAuthenticator{}, manager, discardLogger(), web.Options{})
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader("email=a%40x.io&password=pw"))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()
			h.Routes().ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestNewHandler_RequiresDependencies(t *testing.T) {
	sessions := memstore.NewSessionRepository()
	identities, err := auth.NewIdentityMapper(memstore.NewAccountRepository())
	require.NoError(t, err)
	manager, err := auth.NewSessionManager(sessions, identities, discardLogger())
	require.NoError(t, err)

	_, err = web.NewHandler(nil, stubAuthenticator{}, manager, discardLogger(), web.Options{})
	require.Error(t, err)
	_, err = web.NewHandler(stubRegistrar{}, nil, manager, discardLogger(), web.Options{})
	require.Error(t, err)
	_, err = web.NewHandler(stubRegistrar{}, stubAuthenticator{}, nil, discardLogger(), web.Options{})
	require.Error(t, err)
	_, err = web.NewHandler(stubRegistrar{}, stubAuthenticator{}, manager, nil, web.Options{})
	require.Error(t, err)
}
