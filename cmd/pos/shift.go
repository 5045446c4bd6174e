package main

import (
	"github.com/diewo77/go-pos/i18n"
	"github.com/diewo77/go-pos/internal/services"
	"github.com/urfave/cli/v2"
)

func shiftCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "shift",
		Usage: "open, close or inspect the cash register shift",
		Subcommands: []*cli.Command{
			{
				Name:  "status",
				Usage: "show the open shift",
				Action: func(cc *cli.Context) error {
					st, err := e.state(cc)
					if err != nil {
						return err
					}
					entry, err := e.c.SyncShift(cc.Context, st)
					if err != nil {
						return e.fail(err)
					}
					if ok, err := e.printJSON(cc, map[string]any{"shift": entry}); ok {
						return err
					}
					if entry == nil {
						e.printf(cc, "%s\n", i18n.T(e.lang, "no_open_shift"))
						return nil
					}
					e.printf(cc, "%s on %s since %s\n", entry.Name, entry.POSProfile, entry.PeriodStartDate)
					return nil
				},
			},
			{
				Name:  "open",
				Usage: "open a shift with a zero opening balance",
				Action: func(cc *cli.Context) error {
					st, err := e.state(cc)
					if err != nil {
						return err
					}
					entry, created, err := e.c.OpenShift(cc.Context, st)
					if err != nil {
						return e.fail(err)
					}
					if ok, err := e.printJSON(cc, map[string]any{"shift": entry, "created": created}); ok {
						return err
					}
					if created {
						e.printf(cc, "Opened %s on %s\n", entry.Name, entry.POSProfile)
					} else {
						e.printf(cc, "Already open: %s on %s\n", entry.Name, entry.POSProfile)
					}
					return nil
				},
			},
			{
				Name:  "close",
				Usage: "close the shift and post the closing entry",
				Action: func(cc *cli.Context) error {
					st, err := e.state(cc)
					if err != nil {
						return err
					}
					closing, err := e.c.Shift.Close(cc.Context, st.User.Email)
					if err != nil {
						return e.fail(err)
					}
					if ok, err := e.printJSON(cc, closing); ok {
						return err
					}
					e.printf(cc, "Closed %s: %d invoices, total %s\n", closing.POSOpeningEntry,
						len(closing.POSTransactions), services.FormatMoney(closing.GrandTotal))
					for _, p := range closing.PaymentReconciliation {
						e.printf(cc, "  %-12s %s\n", p.ModeOfPayment, services.FormatMoney(p.ExpectedAmount))
					}
					return nil
				},
			},
		},
	}
}
