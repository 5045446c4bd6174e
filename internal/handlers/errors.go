package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/diewo77/go-pos/httpx"
	"github.com/diewo77/go-pos/i18n"
	"github.com/diewo77/go-pos/internal/erp"
	"github.com/diewo77/go-pos/internal/services"
)

// statusByCode maps workflow codes to HTTP statuses. Codes not listed are
// rejected input (422).
var statusByCode = map[error]int{
	erp.ErrNotAuthenticated:           http.StatusUnauthorized,
	erp.ErrSessionExpired:             http.StatusUnauthorized,
	erp.ErrPermissionDenied:           http.StatusForbidden,
	erp.ErrNotFound:                   http.StatusNotFound,
	erp.ErrUnreachable:                http.StatusBadGateway,
	services.ErrUnknownItem:           http.StatusNotFound,
	services.ErrItemNotInCart:         http.StatusNotFound,
	services.ErrNoShift:               http.StatusConflict,
	services.ErrDraftConflict:         http.StatusConflict,
	services.ErrDraftInvalid:          http.StatusConflict,
	services.ErrInvoiceNotSubmittable: http.StatusConflict,
	services.ErrConfirmationRequired:  http.StatusBadRequest,
	services.ErrCustomerRequired:      http.StatusUnprocessableEntity,
	services.ErrProfileUnavailable:    http.StatusUnprocessableEntity,
	services.ErrNoPaymentMode:         http.StatusUnprocessableEntity,
	services.ErrSerialsIncomplete:     http.StatusUnprocessableEntity,
	services.ErrSerialBatchMalformed:  http.StatusUnprocessableEntity,
	services.ErrSerialSlotsOverflow:   http.StatusUnprocessableEntity,
	services.ErrInvalidQuantity:       http.StatusUnprocessableEntity,
	services.ErrInsufficientStock:     http.StatusUnprocessableEntity,
	services.ErrCartEmpty:             http.StatusUnprocessableEntity,
	services.ErrInvalidCustomer:       http.StatusUnprocessableEntity,
	services.ErrNoPOSProfile:          http.StatusUnprocessableEntity,
}

// errorOrder fixes which code wins when an error matches several, e.g. an
// ERP 404 that is also an *erp.Error.
var errorOrder = []error{
	erp.ErrNotAuthenticated,
	erp.ErrSessionExpired,
	erp.ErrPermissionDenied,
	erp.ErrUnreachable,
	erp.ErrNotFound,
}

// writeError renders err as the JSON error envelope in the request language.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	lang := i18n.FromRequest(r)

	var ve *services.ValidationError
	if errors.As(err, &ve) {
		code := ve.Err.Error()
		httpx.JSONError(w, statusFor(ve.Err), code, i18n.T(lang, code), ve.Details)
		return
	}
	for _, target := range errorOrder {
		if errors.Is(err, target) {
			code := target.Error()
			httpx.JSONError(w, statusByCode[target], code, i18n.T(lang, code), nil)
			return
		}
	}
	for target, status := range statusByCode {
		if errors.Is(err, target) {
			code := target.Error()
			httpx.JSONError(w, status, code, i18n.T(lang, code), nil)
			return
		}
	}

	var ee *erp.Error
	if errors.As(err, &ee) {
		status := http.StatusUnprocessableEntity
		if ee.StatusCode >= 500 {
			status = http.StatusBadGateway
		}
		log.Printf("[gateway] %s %s: %v", r.Method, r.URL.Path, err)
		httpx.JSONError(w, status, "erp_error", erp.UserMessage(err), nil)
		return
	}

	log.Printf("[gateway] ERROR: %s %s: %v", r.Method, r.URL.Path, err)
	httpx.JSONError(w, http.StatusInternalServerError, "internal_error", i18n.T(lang, "internal_error"), nil)
}

func statusFor(code error) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusUnprocessableEntity
}

// badRequest reports an unreadable request body or form.
func badRequest(w http.ResponseWriter, r *http.Request, details any) {
	httpx.JSONError(w, http.StatusBadRequest, "bad_request", i18n.T(i18n.FromRequest(r), "bad_request"), details)
}
