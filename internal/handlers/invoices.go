package handlers

import (
	"bytes"
	"log"
	"net/http"

	"github.com/diewo77/go-pos/auth"
	"github.com/diewo77/go-pos/httpx"
	"github.com/diewo77/go-pos/i18n"
	"github.com/diewo77/go-pos/internal/app"
	"github.com/diewo77/go-pos/internal/models"
	"github.com/diewo77/go-pos/internal/services"
	"github.com/diewo77/go-pos/view"
	"github.com/shopspring/decimal"
)

// InvoiceHandler shows submitted invoices and their receipts.
type InvoiceHandler struct {
	c *app.Container
}

func NewInvoiceHandler(c *app.Container) *InvoiceHandler {
	return &InvoiceHandler{c: c}
}

// List returns the invoices of the current POS profile. Query: status
// (Paid by default).
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	st, _ := auth.StateFromContext(r.Context())
	if _, err := h.c.SyncShift(r.Context(), st); err != nil {
		writeError(w, r, err)
		return
	}
	if st.Profile == "" {
		httpx.JSON(w, http.StatusOK, services.History{Invoices: []models.InvoiceSummary{}, Total: decimal.Zero})
		return
	}
	hist, err := h.c.Receipts.History(r.Context(), st.Profile, r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, hist)
}

// Get returns the full invoice with its computed totals.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	inv, err := h.c.Receipts.Invoice(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"invoice": inv,
		"totals":  h.c.Invoices.ComputeTotals(inv),
	})
}

// PDF streams the ERP print of the invoice, or the local receipt when the
// ERP cannot print it.
func (h *InvoiceHandler) PDF(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	body, err := h.c.Receipts.DownloadPDF(r.Context(), name)
	if err != nil {
		log.Printf("[gateway] WARN: ERP print of %s failed, rendering locally: %v", name, err)
		inv, err := h.c.Receipts.Invoice(r.Context(), name)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var buf bytes.Buffer
		if err := h.c.Receipts.RenderPDF(inv, &buf); err != nil {
			writeError(w, r, err)
			return
		}
		body = buf.Bytes()
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+services.ReceiptFileName(name)+`"`)
	_, _ = w.Write(body)
}

// Receipt renders the printable HTML receipt in the request language.
func (h *InvoiceHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	inv, err := h.c.Receipts.Invoice(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := view.RenderReceipt(&buf, inv, i18n.FromRequest(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// Export saves the invoice PDF in the receipt directory and returns its path.
func (h *InvoiceHandler) Export(w http.ResponseWriter, r *http.Request) {
	path, err := h.c.Receipts.Export(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"path": path})
}
