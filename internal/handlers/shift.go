package handlers

import (
	"context"
	"net/http"

	"github.com/diewo77/go-pos/auth"
	"github.com/diewo77/go-pos/httpx"
	"github.com/diewo77/go-pos/internal/app"
	"github.com/diewo77/go-pos/internal/models"
)

type shiftCtxKey struct{}

// ShiftFromContext returns the open shift attached by RequireShift.
func ShiftFromContext(ctx context.Context) (*models.OpeningEntry, bool) {
	entry, ok := ctx.Value(shiftCtxKey{}).(*models.OpeningEntry)
	return entry, ok && entry != nil
}

// ShiftHandler opens and closes the cashier's shift.
type ShiftHandler struct {
	c *app.Container
}

func NewShiftHandler(c *app.Container) *ShiftHandler {
	return &ShiftHandler{c: c}
}

// RequireShift rejects requests with 409 no_open_shift unless the user has an
// open shift. It runs after auth.RequireAuth and points the request's state
// at the shift's POS profile.
func (h *ShiftHandler) RequireShift(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st, ok := auth.StateFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		entry, err := h.c.RequireShift(r.Context(), st)
		if err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), shiftCtxKey{}, entry)))
	})
}

// Status returns {"shift": entry} with a null entry when no shift is open.
func (h *ShiftHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, _ := auth.StateFromContext(r.Context())
	entry, err := h.c.SyncShift(r.Context(), st)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"shift": entry})
}

// Open answers 201 when a shift was created and 200 when one was already
// open.
func (h *ShiftHandler) Open(w http.ResponseWriter, r *http.Request) {
	st, _ := auth.StateFromContext(r.Context())
	entry, created, err := h.c.OpenShift(r.Context(), st)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, map[string]any{"shift": entry, "created": created})
}

// Close posts the closing entry of the open shift.
func (h *ShiftHandler) Close(w http.ResponseWriter, r *http.Request) {
	st, _ := auth.StateFromContext(r.Context())
	closing, err := h.c.Shift.Close(r.Context(), st.User.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"closing": closing})
}
