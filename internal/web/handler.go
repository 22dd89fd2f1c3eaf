// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

// Package web is the storefront's HTTP transport: the chi router, the
// session cookie middleware and the register, login and logout handlers.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"

	"github.com/storefront/storefront/internal/auth"
	"github.com/storefront/storefront/internal/observability"
	"github.com/storefront/storefront/pkg/errutil"
)

// DefaultCookieName names the session cookie.
const DefaultCookieName = "storefront_session"

// requestTimeout bounds every request, including hashing.
const requestTimeout = 30 * time.Second

// User-facing registration messages.
const (
	msgEmailTaken   = "Email taken."
	msgMissingField = "Username or password cannot be empty."
	msgTooLong      = "Password is too long."
	msgServerError  = "Server error. Please contact an administrator."
)

// Metric operation labels.
const (
	opRegister = "register"
	opLogin    = "login"
)

// Registrar creates accounts.
type Registrar interface {
	Register(ctx context.Context, email, password string) (*auth.Account, error)
}

// Authenticator verifies credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*auth.Account, error)
}

// Sessions issues, resolves and revokes session tokens.
type Sessions interface {
	Issue(ctx context.Context, account *auth.Account) (string, *auth.Session, error)
	Resolve(ctx context.Context, token string) auth.Identity
	Revoke(ctx context.Context, token string) error
	TTL() time.Duration
}

// Options configures a Handler.
type Options struct {
	// CookieName defaults to DefaultCookieName.
	CookieName string
	// SecureCookie marks the session cookie Secure.
	SecureCookie bool
	// Metrics may be nil.
	Metrics *observability.Metrics
}

// Handler serves the storefront pages and auth endpoints.
type Handler struct {
	registrar     Registrar
	authenticator Authenticator
	sessions      Sessions
	logger        *slog.Logger
	metrics       *observability.Metrics
	renderer      *renderer
	cookieName    string
	secureCookie  bool
}

// NewHandler creates a new Handler.
func NewHandler(registrar Registrar, authenticator Authenticator, sessions Sessions, logger *slog.Logger, opts Options) (*Handler, error) {
	if registrar == nil {
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("registrar is required")
	}
	if authenticator == nil {
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("authenticator is required")
	}
	if sessions == nil {
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("session manager is required")
	}
	if logger == nil {
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("logger is required")
	}

	r, err := newRenderer()
	if err != nil {
		return nil, err
	}

	name := opts.CookieName
	if name == "" {
		name = DefaultCookieName
	}

	return &Handler{
		registrar:     registrar,
		authenticator: authenticator,
		sessions:      sessions,
		logger:        logger,
		metrics:       opts.Metrics,
		renderer:      r,
		cookieName:    name,
		secureCookie:  opts.SecureCookie,
	}, nil
}

// Routes constructs the chi router for the storefront.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(h.LoadIdentity)

	r.Get("/", h.handleHome)
	r.Get("/login", h.handleLoginForm)
	r.Post("/login", h.handleLogin)
	r.Get("/register", h.handleRegisterForm)
	r.Post("/register", h.handleRegister)
	r.Post("/logout", h.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth)
		r.Get("/shop", h.handleShop)
	})

	return r
}

func (h *Handler) handleHome(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, http.StatusOK, "home", "Home", "")
}

func (h *Handler) handleShop(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, http.StatusOK, "shop", "Shop", "")
}

func (h *Handler) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, http.StatusOK, "login", "Login", "")
}

func (h *Handler) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, http.StatusOK, "register", "Sign Up", "")
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	email, password, ok := h.credentials(w, r)
	if !ok {
		return
	}

	_, err := h.registrar.Register(r.Context(), email, password)
	switch {
	case err == nil:
		h.metrics.RecordAuthAttempt(opRegister, observability.OutcomeSuccess)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	case errors.Is(err, auth.ErrDuplicateEmail):
		h.metrics.RecordAuthAttempt(opRegister, observability.OutcomeDuplicate)
		h.renderPage(w, r, http.StatusConflict, "register", "Sign Up", msgEmailTaken)
	case errors.Is(err, auth.ErrMissingField):
		h.metrics.RecordAuthAttempt(opRegister, observability.OutcomeInvalid)
		h.renderPage(w, r, http.StatusBadRequest, "register", "Sign Up", msgMissingField)
	case errors.Is(err, auth.ErrPasswordTooLong):
		h.metrics.RecordAuthAttempt(opRegister, observability.OutcomeInvalid)
		h.renderPage(w, r, http.StatusBadRequest, "register", "Sign Up", msgTooLong)
	case errors.Is(err, auth.ErrHashing):
		// Logged by the registrar.
		h.metrics.RecordAuthAttempt(opRegister, observability.OutcomeError)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	default:
		h.metrics.RecordAuthAttempt(opRegister, observability.OutcomeError)
		if !errors.Is(err, auth.ErrStoreUnavailable) {
			errutil.LogErrorContext(r.Context(), h.logger, "registration failed", err)
		}
		h.renderPage(w, r, http.StatusInternalServerError, "register", "Sign Up", msgServerError)
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	email, password, ok := h.credentials(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	account, err := h.authenticator.Authenticate(ctx, email, password)
	if err != nil {
		outcome := observability.OutcomeRejected
		if errors.Is(err, auth.ErrVerification) {
			outcome = observability.OutcomeError
		}
		h.metrics.RecordAuthAttempt(opLogin, outcome)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	// A fresh login replaces whatever session the browser already had.
	if old := h.sessionToken(r); old != "" {
		if err := h.sessions.Revoke(ctx, old); err != nil {
			h.logger.WarnContext(ctx, "previous session revoke failed", "error", err)
		}
	}

	token, session, err := h.sessions.Issue(ctx, account)
	if err != nil {
		h.metrics.RecordAuthAttempt(opLogin, observability.OutcomeError)
		errutil.LogErrorContext(ctx, h.logger, "session issue failed", err)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	h.metrics.RecordAuthAttempt(opLogin, observability.OutcomeSuccess)
	h.setSessionCookie(w, token, session.ExpiresAt)
	http.Redirect(w, r, "/shop", http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if token := h.sessionToken(r); token != "" {
		if err := h.sessions.Revoke(ctx, token); err != nil {
			errutil.LogErrorContext(ctx, h.logger, "logout failed", err)
		}
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// credentials reads the email and password form fields. It writes a 400
// and returns false if the body cannot be parsed.
func (h *Handler) credentials(w http.ResponseWriter, r *http.Request) (email, password string, ok bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return "", "", false
	}
	return r.PostFormValue("email"), r.PostFormValue("password"), true
}

func (h *Handler) renderPage(w http.ResponseWriter, r *http.Request, status int, name, title, message string) {
	data := page{
		Title:   title,
		User:    auth.IdentityFromContext(r.Context()).Account,
		Message: message,
	}
	if err := h.renderer.render(w, status, name, data); err != nil {
		errutil.LogErrorContext(r.Context(), h.logger, "page render failed", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
