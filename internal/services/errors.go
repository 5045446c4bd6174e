package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/diewo77/go-pos/internal/erp"
)

// Workflow errors. The string is the code returned to clients and the key
// used for translation.
var (
	ErrCustomerRequired      = errors.New("customer_required")
	ErrProfileUnavailable    = errors.New("pos_profile_unavailable")
	ErrNoPaymentMode         = errors.New("no_payment_mode")
	ErrSerialsIncomplete     = errors.New("serials_incomplete")
	ErrSerialBatchMalformed  = errors.New("serial_batch_malformed")
	ErrSerialSlotsOverflow   = errors.New("serial_slots_overflow")
	ErrInvalidQuantity       = errors.New("invalid_quantity")
	ErrInsufficientStock     = errors.New("insufficient_stock")
	ErrCartEmpty             = errors.New("cart_empty")
	ErrDraftInvalid          = errors.New("draft_invalid")
	ErrItemNotInCart         = errors.New("item_not_in_cart")
	ErrNoShift               = errors.New("no_open_shift")
	ErrDraftConflict         = errors.New("draft_conflict")
	ErrConfirmationRequired  = errors.New("confirmation_required")
	ErrInvalidCustomer       = errors.New("invalid_customer")
	ErrNoPOSProfile          = errors.New("no_pos_profile")
	ErrInvoiceNotSubmittable = errors.New("invoice_not_draft")
)

// ValidationError carries field level details next to a workflow error.
type ValidationError struct {
	Err     error
	Details map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return e.Err.Error()
	}
	parts := make([]string, 0, len(e.Details))
	for field, code := range e.Details {
		parts = append(parts, field+"="+code)
	}
	sort.Strings(parts)
	return fmt.Sprintf("%s: %s", e.Err, strings.Join(parts, ", "))
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(err error, details map[string]string) error {
	return &ValidationError{Err: err, Details: details}
}

// codeOrder lists the codes clients branch on. Session problems come first
// since an *erp.Error can match several sentinels at once.
var codeOrder = []error{
	erp.ErrNotAuthenticated,
	erp.ErrSessionExpired,
	erp.ErrPermissionDenied,
	erp.ErrUnreachable,
	erp.ErrNotFound,
	ErrCustomerRequired,
	ErrProfileUnavailable,
	ErrNoPaymentMode,
	ErrSerialsIncomplete,
	ErrSerialBatchMalformed,
	ErrSerialSlotsOverflow,
	ErrInvalidQuantity,
	ErrInsufficientStock,
	ErrCartEmpty,
	ErrDraftInvalid,
	ErrItemNotInCart,
	ErrNoShift,
	ErrDraftConflict,
	ErrConfirmationRequired,
	ErrInvalidCustomer,
	ErrNoPOSProfile,
	ErrInvoiceNotSubmittable,
	ErrUnknownItem,
}

// Code returns the client code of err and whether err carries one.
func Code(err error) (string, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Err.Error(), true
	}
	for _, target := range codeOrder {
		if errors.Is(err, target) {
			return target.Error(), true
		}
	}
	return "", false
}
