package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/diewo77/go-pos/auth"
	"github.com/diewo77/go-pos/httpx"
	"github.com/diewo77/go-pos/i18n"
	"github.com/diewo77/go-pos/internal/app"
	"github.com/diewo77/go-pos/internal/erp"
	"github.com/diewo77/go-pos/internal/models"
	"github.com/diewo77/go-pos/internal/services"
	"github.com/diewo77/go-pos/validation"
)

// SessionHandler logs the cashier in and out of the ERP.
type SessionHandler struct {
	c *app.Container
}

func NewSessionHandler(c *app.Container) *SessionHandler {
	return &SessionHandler{c: c}
}

type loginRequest struct {
	Usr string `json:"usr"`
	Pwd string `json:"pwd"`
}

// sessionResponse is what a UI needs to pick its first screen.
type sessionResponse struct {
	User         models.User          `json:"user"`
	Profile      string               `json:"pos_profile,omitempty"`
	Customer     string               `json:"customer,omitempty"`
	CustomerName string               `json:"customer_name,omitempty"`
	Shift        *models.OpeningEntry `json:"shift"`
	CartQty      float64              `json:"cart_qty"`
}

// Login accepts JSON or a form post with usr and pwd.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			badRequest(w, r, nil)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			badRequest(w, r, nil)
			return
		}
		req.Usr = r.FormValue("usr")
		req.Pwd = r.FormValue("pwd")
	}
	req.Usr = strings.TrimSpace(req.Usr)

	v := validation.Violations{}
	validation.Required("usr", req.Usr, v)
	validation.Required("pwd", req.Pwd, v)
	if !v.Empty() {
		lang := i18n.FromRequest(r)
		httpx.JSONError(w, http.StatusUnprocessableEntity, "required", i18n.T(lang, "required"), v)
		return
	}

	st, err := h.c.Login(r.Context(), req.Usr, req.Pwd)
	if err != nil {
		var ee *erp.Error
		if errors.As(err, &ee) && ee.StatusCode == http.StatusUnauthorized {
			lang := i18n.FromRequest(r)
			httpx.JSONError(w, http.StatusUnauthorized, "invalid_credentials", i18n.T(lang, "invalid_credentials"), nil)
			return
		}
		writeError(w, r, err)
		return
	}
	h.c.Gate.CreateSession(w, st.User.Email)
	h.respond(w, r, st)
}

// Logout ends the ERP session and forgets the device state. It succeeds even
// when the session had already expired.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.c.Session.Logout(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	h.c.Gate.ClearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the current state with the open shift, if any.
func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	st, _ := auth.StateFromContext(r.Context())
	h.respond(w, r, st)
}

func (h *SessionHandler) respond(w http.ResponseWriter, r *http.Request, st *services.AppState) {
	entry, err := h.c.SyncShift(r.Context(), st)
	if err != nil {
		writeError(w, r, err)
		return
	}
	qty, err := h.c.Cart.Quantity(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{
		User:         st.User,
		Profile:      st.Profile,
		Customer:     st.Customer,
		CustomerName: st.CustomerName,
		Shift:        entry,
		CartQty:      qty,
	})
}
