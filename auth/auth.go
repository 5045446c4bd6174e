// Package auth binds browser requests to the cashier session held by the
// device. A signed cookie names the logged-in user; it is only honoured
// while the device's stored session belongs to that same user.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/diewo77/go-pos/httpx"
	"github.com/diewo77/go-pos/i18n"
	"github.com/diewo77/go-pos/internal/erp"
	"github.com/diewo77/go-pos/internal/services"
)

type ctxKey string

const (
	sessionCookieName = "pos_session"
	stateCtxKey       = ctxKey("appState")
	sessionTTL        = 14 * 24 * time.Hour
)

// Restorer loads the device's application state. *services.SessionService
// satisfies it.
type Restorer interface {
	Restore(ctx context.Context) (*services.AppState, error)
}

// Gate issues and checks session cookies.
type Gate struct {
	secret   []byte
	sessions Restorer
}

func NewGate(secret string, sessions Restorer) *Gate {
	return &Gate{secret: []byte(secret), sessions: sessions}
}

func (g *Gate) sign(email string) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(email))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// CreateSession sets a signed cookie for email.
func (g *Gate) CreateSession(w http.ResponseWriter, email string) {
	value := base64.RawURLEncoding.EncodeToString([]byte(email)) + "." + g.sign(email)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(sessionTTL),
	})
}

// ClearSession deletes the session cookie.
func (g *Gate) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "", Path: "/", Expires: time.Unix(0, 0), HttpOnly: true, SameSite: http.SameSiteLaxMode})
}

// ParseSession validates the cookie and returns the user it names.
func (g *Gate) ParseSession(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	enc, sig, ok := strings.Cut(c.Value, ".")
	if !ok {
		return "", false
	}
	raw, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil || len(raw) == 0 {
		return "", false
	}
	email := string(raw)
	if !hmac.Equal([]byte(sig), []byte(g.sign(email))) {
		return "", false
	}
	return email, true
}

// WithState stores the application state in ctx.
func WithState(ctx context.Context, st *services.AppState) context.Context {
	return context.WithValue(ctx, stateCtxKey, st)
}

// StateFromContext extracts the application state.
func StateFromContext(ctx context.Context) (*services.AppState, bool) {
	st, ok := ctx.Value(stateCtxKey).(*services.AppState)
	return st, ok && st != nil
}

// RequireAuth rejects requests without a valid cookie for the device's
// current user with 401 JSON, and attaches the restored state otherwise.
func (g *Gate) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email, ok := g.ParseSession(r)
		if !ok {
			unauthorized(w, r)
			return
		}
		st, err := g.sessions.Restore(r.Context())
		if err != nil {
			if !errors.Is(err, erp.ErrNotAuthenticated) {
				log.Printf("[auth] restore session: %v", err)
			}
			g.ClearSession(w)
			unauthorized(w, r)
			return
		}
		if !strings.EqualFold(st.User.Email, email) {
			// the device was logged in again as someone else
			g.ClearSession(w)
			unauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithState(r.Context(), st)))
	})
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	code := erp.ErrNotAuthenticated.Error()
	httpx.JSONError(w, http.StatusUnauthorized, code, i18n.T(i18n.FromRequest(r), code), nil)
}
