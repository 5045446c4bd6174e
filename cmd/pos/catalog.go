package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/diewo77/go-pos/internal/services"
	"github.com/urfave/cli/v2"
)

func itemsCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "items",
		Usage:     "list the items sold on the shift's profile",
		ArgsUsage: "[search]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "start", Usage: "offset of the first item"},
		},
		Action: func(cc *cli.Context) error {
			st, err := e.selling(cc)
			if err != nil {
				return err
			}
			items, err := e.c.Catalog.Items(cc.Context, st.Profile, strings.Join(cc.Args().Slice(), " "), cc.Int("start"))
			if err != nil {
				return e.fail(err)
			}
			if ok, err := e.printJSON(cc, items); ok {
				return err
			}
			tw := tabwriter.NewWriter(cc.App.Writer, 0, 4, 2, ' ', 0)
			for _, it := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\n", it.ItemCode, it.ItemName,
					services.FormatMoney(it.NetPrice()), services.FormatMoney(it.ActualQty), it.UOM)
			}
			return tw.Flush()
		},
	}
}

func customersCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "customers",
		Usage:     "search customers by id or name",
		ArgsUsage: "[search]",
		Action: func(cc *cli.Context) error {
			if _, err := e.state(cc); err != nil {
				return err
			}
			refs, err := e.c.Catalog.Customers(cc.Context, strings.Join(cc.Args().Slice(), " "))
			if err != nil {
				return e.fail(err)
			}
			if ok, err := e.printJSON(cc, refs); ok {
				return err
			}
			for _, r := range refs {
				e.printf(cc, "%s\n", customerLabel(r.Value, r.Description))
			}
			return nil
		},
	}
}

func customerCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "customer",
		Usage: "register or select a customer",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "register a customer with a photo of the identity card",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "outlet", Usage: "outlet id"},
					&cli.StringFlag{Name: "name", Usage: "full name"},
					&cli.StringFlag{Name: "ktp", Usage: "16 digit identity number"},
					&cli.StringFlag{Name: "address"},
					&cli.StringFlag{Name: "email"},
					&cli.StringFlag{Name: "phone"},
					&cli.PathFlag{Name: "photo", Usage: "identity card photo"},
				},
				Action: func(cc *cli.Context) error {
					st, err := e.state(cc)
					if err != nil {
						return err
					}
					form := services.NewCustomer{
						OutletID: cc.String("outlet"),
						Name:     cc.String("name"),
						KTP:      cc.String("ktp"),
						Address:  cc.String("address"),
						Email:    cc.String("email"),
						Phone:    cc.String("phone"),
					}
					if path := cc.Path("photo"); path != "" {
						f, err := os.Open(path)
						if err != nil {
							return cli.Exit(err.Error(), exitFailure)
						}
						defer f.Close()
						form.Photo = f
						form.PhotoName = filepath.Base(path)
					}
					ref, err := e.c.Catalog.CreateCustomer(cc.Context, st.User.Email, form)
					if err != nil {
						return e.fail(err)
					}
					if ok, err := e.printJSON(cc, ref); ok {
						return err
					}
					e.printf(cc, "Registered %s\n", customerLabel(ref.Value, ref.Description))
					return nil
				},
			},
			{
				Name:      "select",
				Usage:     "start the next cart for a customer, dropping the current cart",
				ArgsUsage: "<customer>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "display name"},
				},
				Action: func(cc *cli.Context) error {
					st, err := e.state(cc)
					if err != nil {
						return err
					}
					if err := e.c.Cart.SelectCustomer(cc.Context, st, cc.Args().First(), cc.String("name")); err != nil {
						return e.fail(err)
					}
					e.printf(cc, "Customer: %s\n", customerLabel(st.Customer, st.CustomerName))
					return nil
				},
			},
		},
	}
}
