package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/diewo77/go-pos/internal/services"
	"github.com/diewo77/go-pos/view"
	"github.com/urfave/cli/v2"
)

func invoicesCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "invoices",
		Usage: "list the invoices of the shift's profile",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "status", Value: "Paid", Usage: "invoice status"},
		},
		Action: func(cc *cli.Context) error {
			st, err := e.selling(cc)
			if err != nil {
				return err
			}
			hist, err := e.c.Receipts.History(cc.Context, st.Profile, cc.String("status"))
			if err != nil {
				return e.fail(err)
			}
			if ok, err := e.printJSON(cc, hist); ok {
				return err
			}
			tw := tabwriter.NewWriter(cc.App.Writer, 0, 4, 2, ' ', 0)
			for _, row := range hist.Invoices {
				number := row.InvoiceNumber
				if number == "" {
					number = row.Name
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", number, row.PostingDate,
					customerLabel(row.Customer, row.CustomerName), services.FormatMoney(row.GrandTotal))
			}
			fmt.Fprintf(tw, "\t\tTotal\t%s\n", services.FormatMoney(hist.Total.InexactFloat64()))
			return tw.Flush()
		},
	}
}

func receiptCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "receipt",
		Usage:     "show an invoice and save its PDF receipt",
		ArgsUsage: "<invoice>",
		Flags: []cli.Flag{
			&cli.PathFlag{Name: "html", Usage: "also write the printable HTML receipt to this file"},
			&cli.BoolFlag{Name: "no-pdf", Usage: "do not export the PDF"},
		},
		Action: func(cc *cli.Context) error {
			if _, err := e.state(cc); err != nil {
				return err
			}
			name := cc.Args().First()
			inv, err := e.c.Receipts.Invoice(cc.Context, name)
			if err != nil {
				return e.fail(err)
			}
			if ok, err := e.printJSON(cc, inv); !ok {
				printInvoiceLines(cc, e.c.Invoices, inv)
			} else if err != nil {
				return err
			}

			if path := cc.Path("html"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return cli.Exit(err.Error(), exitFailure)
				}
				if err := view.RenderReceipt(f, inv, e.lang); err != nil {
					f.Close()
					return cli.Exit(err.Error(), exitFailure)
				}
				if err := f.Close(); err != nil {
					return cli.Exit(err.Error(), exitFailure)
				}
				e.printf(cc, "HTML receipt: %s\n", path)
			}
			if cc.Bool("no-pdf") {
				return nil
			}
			path, err := e.c.Receipts.Export(cc.Context, name)
			if err != nil {
				return e.fail(err)
			}
			e.printf(cc, "PDF receipt: %s\n", path)
			return nil
		},
	}
}
