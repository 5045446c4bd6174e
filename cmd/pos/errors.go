package main

import (
	"errors"
	"sort"
	"strings"

	"github.com/diewo77/go-pos/i18n"
	"github.com/diewo77/go-pos/internal/erp"
	"github.com/diewo77/go-pos/internal/services"
	"github.com/urfave/cli/v2"
)

// Exit codes.
const (
	exitFailure  = 1
	exitRejected = 2 // the workflow refused the request
	exitSession  = 3 // log in again
)

// fail turns err into a localized message with an exit code.
func (e *env) fail(err error) error {
	code, ok := services.Code(err)
	if !ok {
		var ee *erp.Error
		if errors.As(err, &ee) {
			return cli.Exit(erp.UserMessage(err), exitRejected)
		}
		return cli.Exit(err.Error(), exitFailure)
	}

	msg := i18n.T(e.lang, code)
	var ve *services.ValidationError
	if errors.As(err, &ve) && len(ve.Details) > 0 {
		parts := make([]string, 0, len(ve.Details))
		for field, detail := range ve.Details {
			parts = append(parts, field+": "+i18n.T(e.lang, detail))
		}
		sort.Strings(parts)
		msg += " (" + strings.Join(parts, ", ") + ")"
	}
	switch code {
	case erp.ErrNotAuthenticated.Error(), erp.ErrSessionExpired.Error():
		return cli.Exit(msg, exitSession)
	case erp.ErrUnreachable.Error():
		return cli.Exit(msg, exitFailure)
	}
	return cli.Exit(msg, exitRejected)
}
