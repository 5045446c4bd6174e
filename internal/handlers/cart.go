package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/diewo77/go-pos/auth"
	"github.com/diewo77/go-pos/httpx"
	"github.com/diewo77/go-pos/i18n"
	"github.com/diewo77/go-pos/internal/app"
	"github.com/diewo77/go-pos/internal/services"
)

// CartHandler drives the cart of the open shift.
type CartHandler struct {
	c *app.Container
}

func NewCartHandler(c *app.Container) *CartHandler {
	return &CartHandler{c: c}
}

type customerRequest struct {
	Customer     string `json:"customer"`
	CustomerName string `json:"customer_name"`
}

type addItemRequest struct {
	ItemCode    string   `json:"item_code"`
	Qty         int      `json:"qty"`
	Serials     []string `json:"serials"`
	SerialBatch string   `json:"serial_batch"`
}

type fillSerialsRequest struct {
	Slots []string `json:"slots"`
	Input string   `json:"input"`
}

// Show returns the cart. A stale draft is dropped on the way and reported as
// an empty cart.
func (h *CartHandler) Show(w http.ResponseWriter, r *http.Request) {
	res, err := h.c.Cart.Cart(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

// SelectCustomer sets the customer of the next cart, dropping the current
// one.
func (h *CartHandler) SelectCustomer(w http.ResponseWriter, r *http.Request) {
	st, _ := auth.StateFromContext(r.Context())
	var req customerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, r, nil)
		return
	}
	if err := h.c.Cart.SelectCustomer(r.Context(), st, req.Customer, req.CustomerName); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"customer":      st.Customer,
		"customer_name": st.CustomerName,
	})
}

// AddItem puts an item with its serial numbers into the cart.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	st, _ := auth.StateFromContext(r.Context())
	var req addItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, r, nil)
		return
	}
	res, err := h.c.AddToCart(r.Context(), st, req.ItemCode, req.Qty, req.Serials, req.SerialBatch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

// RemoveItem drops an item. It needs confirm=true in the query or form.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	confirmed, _ := strconv.ParseBool(r.FormValue("confirm"))
	res, err := h.c.Cart.RemoveItem(r.Context(), r.PathValue("code"), confirmed)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

// Checkout submits the cart and returns the submitted invoice.
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	inv, err := h.c.Cart.Checkout(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoice": inv})
}

// FillSerials expands a serial batch into the empty slots. On overflow the
// partially filled slots come back in the error details.
func (h *CartHandler) FillSerials(w http.ResponseWriter, r *http.Request) {
	var req fillSerialsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, r, nil)
		return
	}
	slots, err := services.FillSerialSlots(req.Slots, req.Input)
	var ve *services.ValidationError
	if errors.As(err, &ve) && errors.Is(ve.Err, services.ErrSerialSlotsOverflow) && ve.Details["unused"] != "" {
		code := ve.Err.Error()
		httpx.JSONError(w, http.StatusUnprocessableEntity, code, i18n.T(i18n.FromRequest(r), code), map[string]any{
			"unused": ve.Details["unused"],
			"slots":  slots,
		})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"slots": slots})
}
