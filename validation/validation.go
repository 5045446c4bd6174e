package validation

import (
	"net/mail"
	"strings"
	"unicode"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

// Digits requires exactly n decimal digits. Zero n accepts any length.
func Digits(field, value string, n int, v Violations) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	for _, r := range value {
		if !unicode.IsDigit(r) {
			v[field] = "digits_only"
			return
		}
	}
	if n > 0 && len(value) != n {
		v[field] = "invalid_length"
	}
}

// Email accepts an empty value or a single bare address.
func Email(field, value string, v Violations) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		v[field] = "invalid_email"
	}
}

// Phone accepts an empty value or digits with an optional leading plus.
func Phone(field, value string, v Violations) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "+")
	if value == "" {
		return
	}
	Digits(field, value, 0, v)
	if _, bad := v[field]; !bad && (len(value) < 8 || len(value) > 15) {
		v[field] = "invalid_length"
	}
}

func RangeInt(field string, val, minVal, maxVal int, v Violations) {
	if val < minVal || val > maxVal {
		v[field] = "out_of_range"
	}
}
