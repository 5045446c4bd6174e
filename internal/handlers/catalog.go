package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/diewo77/go-pos/auth"
	"github.com/diewo77/go-pos/httpx"
	"github.com/diewo77/go-pos/internal/app"
	"github.com/diewo77/go-pos/internal/services"
)

// maxPhotoBytes bounds the customer registration upload.
const maxPhotoBytes = 10 << 20

// CatalogHandler serves the item and customer pickers.
type CatalogHandler struct {
	c *app.Container
}

func NewCatalogHandler(c *app.Container) *CatalogHandler {
	return &CatalogHandler{c: c}
}

// Items lists one page of the shift profile's items. Query: q, start.
func (h *CatalogHandler) Items(w http.ResponseWriter, r *http.Request) {
	st, _ := auth.StateFromContext(r.Context())
	start, _ := strconv.Atoi(r.URL.Query().Get("start"))
	items, err := h.c.Catalog.Items(r.Context(), st.Profile, r.URL.Query().Get("q"), start)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "start": max(start, 0)})
}

// Customers searches customers by id or name. Query: q.
func (h *CatalogHandler) Customers(w http.ResponseWriter, r *http.Request) {
	refs, err := h.c.Catalog.Customers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"customers": refs})
}

// CreateCustomer registers a customer from a multipart form carrying the
// identity card photo in foto_ktp.
func (h *CatalogHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	st, _ := auth.StateFromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes)
	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		badRequest(w, r, nil)
		return
	}
	form := services.NewCustomer{
		OutletID: r.FormValue("id_outlet"),
		Name:     r.FormValue("nama_customer"),
		KTP:      r.FormValue("ktp"),
		Address:  r.FormValue("alamat"),
		Email:    r.FormValue("email"),
		Phone:    r.FormValue("telpon"),
	}
	file, header, err := r.FormFile("foto_ktp")
	switch {
	case err == nil:
		defer file.Close()
		form.Photo = file
		form.PhotoName = header.Filename
	case errors.Is(err, http.ErrMissingFile):
		// reported by validation
	default:
		badRequest(w, r, nil)
		return
	}

	ref, err := h.c.Catalog.CreateCustomer(r.Context(), st.User.Email, form)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"customer": ref})
}
