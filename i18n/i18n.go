// Package i18n holds the user-facing messages of the POS in Indonesian and
// English.
package i18n

import (
	"net/http"
	"strings"
)

// Default is the language used when nothing else matches.
const Default = "id"

var messages = map[string]map[string]string{
	"id": {
		"required":                "Wajib diisi",
		"digits_only":             "Hanya angka",
		"invalid_length":          "Panjang tidak valid",
		"invalid_email":           "Email tidak valid",
		"out_of_range":            "Di luar batas",
		"bad_request":             "Permintaan tidak valid",
		"internal_error":          "Terjadi kesalahan, coba lagi",
		"not_authenticated":       "Silakan login terlebih dahulu",
		"session_expired":         "Sesi berakhir, silakan login kembali",
		"permission_denied":       "Anda tidak memiliki akses",
		"not_found":               "Data tidak ditemukan",
		"erp_unreachable":         "Server tidak dapat dihubungi",
		"erp_error":               "Server menolak permintaan",
		"invalid_credentials":     "Email atau password salah",
		"customer_required":       "Pilih customer terlebih dahulu",
		"pos_profile_unavailable": "POS Profile tidak tersedia",
		"no_payment_mode":         "Metode pembayaran belum diatur",
		"serials_incomplete":      "Nomor serial belum lengkap",
		"serial_batch_malformed":  "Format nomor serial tidak valid",
		"serial_slots_overflow":   "Jumlah nomor serial melebihi kuantitas",
		"invalid_quantity":        "Kuantitas tidak valid",
		"insufficient_stock":      "Stok tidak mencukupi",
		"cart_empty":              "Keranjang kosong",
		"draft_invalid":           "Keranjang tidak lagi valid, silakan ulangi",
		"item_not_in_cart":        "Barang tidak ada di keranjang",
		"no_open_shift":           "Buka shift terlebih dahulu",
		"draft_conflict":          "Keranjang diubah di tempat lain, silakan muat ulang",
		"confirmation_required":   "Konfirmasi diperlukan",
		"invalid_customer":        "Data customer tidak valid",
		"no_pos_profile":          "Tidak ada POS Profile untuk perusahaan ini",
		"invoice_not_draft":       "Invoice sudah disubmit",
		"unknown_item":            "Barang tidak dikenal",
		"receipt_no":              "No",
		"receipt_date":            "Tanggal",
		"receipt_customer":        "Customer",
		"receipt_item":            "Barang",
		"receipt_qty":             "Qty",
		"receipt_price":           "Harga",
		"receipt_amount":          "Jumlah",
		"receipt_subtotal":        "Subtotal",
		"receipt_discount":        "Diskon",
		"receipt_tax":             "Pajak",
		"receipt_total":           "Total",
		"receipt_thanks":          "Terima kasih atas kunjungan Anda",
	},
	"en": {
		"required":                "Required",
		"digits_only":             "Digits only",
		"invalid_length":          "Invalid length",
		"invalid_email":           "Invalid email",
		"out_of_range":            "Out of range",
		"bad_request":             "Invalid request",
		"internal_error":          "Something went wrong, please try again",
		"not_authenticated":       "Please log in first",
		"session_expired":         "Session expired, please log in again",
		"permission_denied":       "You do not have access",
		"not_found":               "Not found",
		"erp_unreachable":         "The server cannot be reached",
		"erp_error":               "The server rejected the request",
		"invalid_credentials":     "Invalid email or password",
		"customer_required":       "Select a customer first",
		"pos_profile_unavailable": "POS profile unavailable",
		"no_payment_mode":         "No payment method configured",
		"serials_incomplete":      "Serial numbers are incomplete",
		"serial_batch_malformed":  "Malformed serial numbers",
		"serial_slots_overflow":   "More serial numbers than quantity",
		"invalid_quantity":        "Invalid quantity",
		"insufficient_stock":      "Insufficient stock",
		"cart_empty":              "The cart is empty",
		"draft_invalid":           "The cart is no longer valid, please start again",
		"item_not_in_cart":        "Item is not in the cart",
		"no_open_shift":           "Open a shift first",
		"draft_conflict":          "The cart was changed elsewhere, please reload",
		"confirmation_required":   "Confirmation required",
		"invalid_customer":        "Invalid customer data",
		"no_pos_profile":          "No POS profile for this company",
		"invoice_not_draft":       "The invoice is already submitted",
		"unknown_item":            "Unknown item",
		"receipt_no":              "No",
		"receipt_date":            "Date",
		"receipt_customer":        "Customer",
		"receipt_item":            "Item",
		"receipt_qty":             "Qty",
		"receipt_price":           "Price",
		"receipt_amount":          "Amount",
		"receipt_subtotal":        "Subtotal",
		"receipt_discount":        "Discount",
		"receipt_tax":             "Tax",
		"receipt_total":           "Total",
		"receipt_thanks":          "Thank you for your visit",
	},
}

// Supported reports whether lang has a catalog.
func Supported(lang string) bool {
	_, ok := messages[lang]
	return ok
}

// DetectLanguage picks the first supported language of an Accept-Language
// header, Default otherwise.
func DetectLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		tag, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		base, _, _ := strings.Cut(strings.ToLower(tag), "-")
		if Supported(base) {
			return base
		}
	}
	return Default
}

// FromRequest resolves the language of r: the lang query parameter, then the
// lang cookie, then Accept-Language.
func FromRequest(r *http.Request) string {
	if l := strings.ToLower(r.URL.Query().Get("lang")); Supported(l) {
		return l
	}
	if c, err := r.Cookie("lang"); err == nil && Supported(strings.ToLower(c.Value)) {
		return strings.ToLower(c.Value)
	}
	return DetectLanguage(r.Header.Get("Accept-Language"))
}

// T translates code, falling back to the default language and then to the
// code itself.
func T(lang, code string) string {
	if m, ok := messages[lang]; ok {
		if s, ok := m[code]; ok {
			return s
		}
	}
	if s, ok := messages[Default][code]; ok {
		return s
	}
	return code
}
