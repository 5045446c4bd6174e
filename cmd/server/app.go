package main

import (
	"net/http"

	"github.com/diewo77/go-pos/httpx"
	"github.com/diewo77/go-pos/i18n"
	"github.com/diewo77/go-pos/internal/app"
	"github.com/diewo77/go-pos/internal/handlers"
)

// App is the gateway handler that sets up all routes.
type App struct {
	mux *http.ServeMux
	c   *app.Container
}

// NewApp creates the gateway with all routes configured.
func NewApp(c *app.Container) *App {
	a := &App{
		mux: http.NewServeMux(),
		c:   c,
	}
	a.setupRoutes()
	return a
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	withPreferences(a.mux).ServeHTTP(w, r)
}

// setupRoutes configures all gateway routes.
func (a *App) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Public routes (no auth required)
	// ─────────────────────────────────────────────────────────────────────────
	sh := handlers.NewSessionHandler(a.c)

	a.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	a.mux.HandleFunc("POST /login", sh.Login)
	a.mux.HandleFunc("POST /logout", sh.Logout)

	// ─────────────────────────────────────────────────────────────────────────
	// Authenticated routes (require the device session)
	// ─────────────────────────────────────────────────────────────────────────
	shift := handlers.NewShiftHandler(a.c)
	ch := handlers.NewCatalogHandler(a.c)
	ih := handlers.NewInvoiceHandler(a.c)

	a.mux.Handle("GET /me", a.requireAuth(sh.Me))

	a.mux.Handle("GET /shift", a.requireAuth(shift.Status))
	a.mux.Handle("POST /shift/open", a.requireAuth(shift.Open))
	a.mux.Handle("POST /shift/close", a.requireAuth(shift.Close))

	a.mux.Handle("GET /customers", a.requireAuth(ch.Customers))
	a.mux.Handle("POST /customers", a.requireAuth(ch.CreateCustomer))

	a.mux.Handle("GET /invoices", a.requireAuth(ih.List))
	a.mux.Handle("GET /invoices/{name}", a.requireAuth(ih.Get))
	a.mux.Handle("GET /invoices/{name}/pdf", a.requireAuth(ih.PDF))
	a.mux.Handle("GET /invoices/{name}/receipt", a.requireAuth(ih.Receipt))
	a.mux.Handle("POST /invoices/{name}/export", a.requireAuth(ih.Export))

	// ─────────────────────────────────────────────────────────────────────────
	// Selling routes (require auth + an open shift)
	// ─────────────────────────────────────────────────────────────────────────
	cart := handlers.NewCartHandler(a.c)
	selling := func(h http.HandlerFunc) http.Handler {
		return a.c.Gate.RequireAuth(shift.RequireShift(h))
	}

	a.mux.Handle("GET /items", selling(ch.Items))
	a.mux.Handle("GET /cart", selling(cart.Show))
	a.mux.Handle("POST /cart/customer", selling(cart.SelectCustomer))
	a.mux.Handle("POST /cart/items", selling(cart.AddItem))
	a.mux.Handle("POST /cart/items/{code}/delete", selling(cart.RemoveItem))
	a.mux.Handle("POST /cart/checkout", selling(cart.Checkout))
	a.mux.Handle("POST /serials/fill", a.requireAuth(cart.FillSerials))
}

// ─────────────────────────────────────────────────────────────────────────────
// Middleware
// ─────────────────────────────────────────────────────────────────────────────

// requireAuth wraps a handler to require the device session.
func (a *App) requireAuth(next http.HandlerFunc) http.Handler {
	return a.c.Gate.RequireAuth(next)
}

// withPreferences remembers a language chosen with ?lang= in a cookie.
func withPreferences(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("lang"); i18n.Supported(q) {
			http.SetCookie(w, &http.Cookie{
				Name:     "lang",
				Value:    q,
				Path:     "/",
				MaxAge:   86400 * 365,
				HttpOnly: true,
			})
		}
		next.ServeHTTP(w, r)
	})
}
