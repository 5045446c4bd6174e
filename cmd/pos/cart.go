package main

import (
	"bufio"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/diewo77/go-pos/i18n"
	"github.com/diewo77/go-pos/internal/models"
	"github.com/diewo77/go-pos/internal/services"
	"github.com/urfave/cli/v2"
)

func cartCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "cart",
		Usage: "work on the cart of the open shift",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "show the cart",
				Action: func(cc *cli.Context) error {
					if _, err := e.selling(cc); err != nil {
						return err
					}
					res, err := e.c.Cart.Cart(cc.Context)
					if err != nil {
						return e.fail(err)
					}
					return e.printCart(cc, res)
				},
			},
			{
				Name:      "add",
				Usage:     "add an item with one serial number per unit",
				ArgsUsage: "<item code>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "qty", Aliases: []string{"q"}, Value: 1},
					&cli.StringSliceFlag{Name: "serial", Usage: "one serial number, repeatable"},
					&cli.StringFlag{Name: "serials", Usage: `serial batch, e.g. "5::7 9"`},
				},
				Action: func(cc *cli.Context) error {
					st, err := e.selling(cc)
					if err != nil {
						return err
					}
					res, err := e.c.AddToCart(cc.Context, st, cc.Args().First(), cc.Int("qty"), cc.StringSlice("serial"), cc.String("serials"))
					if err != nil {
						return e.fail(err)
					}
					return e.printCart(cc, res)
				},
			},
			{
				Name:      "remove",
				Usage:     "remove an item",
				ArgsUsage: "<item code>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation"},
				},
				Action: func(cc *cli.Context) error {
					if _, err := e.selling(cc); err != nil {
						return err
					}
					code := cc.Args().First()
					confirmed := cc.Bool("yes")
					if !confirmed {
						e.printf(cc, "Remove %s from the cart? [y/N] ", code)
						line, _ := bufio.NewReader(cc.App.Reader).ReadString('\n')
						answer := strings.ToLower(strings.TrimSpace(line))
						confirmed = answer == "y" || answer == "yes" || answer == "ya"
					}
					if !confirmed {
						e.printf(cc, "\n")
						return cli.Exit(i18n.T(e.lang, services.ErrConfirmationRequired.Error()), exitRejected)
					}
					res, err := e.c.Cart.RemoveItem(cc.Context, code, true)
					if err != nil {
						return e.fail(err)
					}
					return e.printCart(cc, res)
				},
			},
			{
				Name:  "checkout",
				Usage: "submit the cart as a paid invoice",
				Action: func(cc *cli.Context) error {
					if _, err := e.selling(cc); err != nil {
						return err
					}
					inv, err := e.c.Cart.Checkout(cc.Context)
					if err != nil {
						return e.fail(err)
					}
					if ok, err := e.printJSON(cc, inv); ok {
						return err
					}
					e.printf(cc, "Submitted %s, total %s\n", inv.DisplayNumber(), services.FormatMoney(inv.GrandTotal))
					return nil
				},
			},
		},
	}
}

func (e *env) printCart(cc *cli.Context, res *services.CartResult) error {
	if ok, err := e.printJSON(cc, res); ok {
		return err
	}
	if res.Invoice == nil {
		e.printf(cc, "%s\n", i18n.T(e.lang, services.ErrCartEmpty.Error()))
		return nil
	}
	printInvoiceLines(cc, e.c.Invoices, res.Invoice)
	return nil
}

// printInvoiceLines writes the lines and totals of inv.
func printInvoiceLines(cc *cli.Context, invoices *services.InvoiceService, inv *models.POSInvoice) {
	tw := tabwriter.NewWriter(cc.App.Writer, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "%s\t\t\t\n", inv.DisplayNumber())
	for i := range inv.Items {
		it := &inv.Items[i]
		amount := it.Amount
		if amount == 0 {
			amount = it.UnitPrice() * it.Qty
		}
		fmt.Fprintf(tw, "%s\t%v\t%s\t%s\t\n", it.ItemCode, it.Qty, services.FormatMoney(it.UnitPrice()), services.FormatMoney(amount))
	}
	totals := invoices.ComputeTotals(inv)
	grand := inv.GrandTotal
	if grand == 0 {
		grand = totals.Grand.InexactFloat64()
	}
	fmt.Fprintf(tw, "Subtotal\t\t\t%s\t\n", services.FormatMoney(totals.Net.InexactFloat64()))
	fmt.Fprintf(tw, "Tax\t\t\t%s\t\n", services.FormatMoney(totals.Tax.InexactFloat64()))
	fmt.Fprintf(tw, "Total\t\t\t%s\t\n", services.FormatMoney(grand))
	_ = tw.Flush()
}
