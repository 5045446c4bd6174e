package main

import (
	"bufio"
	"errors"
	"net/http"
	"strings"

	"github.com/diewo77/go-pos/i18n"
	"github.com/diewo77/go-pos/internal/erp"
	"github.com/urfave/cli/v2"
)

func loginCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "log in to the ERP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Required: true, Usage: "ERP login email"},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "password, read from stdin when omitted"},
		},
		Action: func(cc *cli.Context) error {
			pwd := cc.String("password")
			if pwd == "" {
				e.printf(cc, "Password: ")
				line, err := bufio.NewReader(cc.App.Reader).ReadString('\n')
				if err != nil && line == "" {
					return cli.Exit(i18n.T(e.lang, "required"), exitRejected)
				}
				pwd = strings.TrimRight(line, "\r\n")
			}
			st, err := e.c.Login(cc.Context, strings.TrimSpace(cc.String("user")), pwd)
			if err != nil {
				var ee *erp.Error
				if errors.As(err, &ee) && ee.StatusCode == http.StatusUnauthorized {
					return cli.Exit(i18n.T(e.lang, "invalid_credentials"), exitSession)
				}
				return e.fail(err)
			}
			if ok, err := e.printJSON(cc, st); ok {
				return err
			}
			e.printf(cc, "Logged in as %s (%s)\n", st.User.FullName, st.User.Email)
			if st.Profile != "" {
				e.printf(cc, "Shift open on %s\n", st.Profile)
			}
			return nil
		},
	}
}

func logoutCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "end the session and forget the cart",
		Action: func(cc *cli.Context) error {
			if err := e.c.Session.Logout(cc.Context); err != nil {
				return e.fail(err)
			}
			e.printf(cc, "Logged out\n")
			return nil
		},
	}
}

func whoamiCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "show the session, shift and customer",
		Action: func(cc *cli.Context) error {
			st, err := e.state(cc)
			if err != nil {
				return err
			}
			entry, err := e.c.SyncShift(cc.Context, st)
			if err != nil {
				return e.fail(err)
			}
			if ok, err := e.printJSON(cc, map[string]any{"state": st, "shift": entry}); ok {
				return err
			}
			e.printf(cc, "User:     %s (%s)\n", st.User.FullName, st.User.Email)
			if st.User.Cluster != "" {
				e.printf(cc, "Cluster:  %s\n", st.User.Cluster)
			}
			if entry != nil {
				e.printf(cc, "Shift:    %s on %s\n", entry.Name, entry.POSProfile)
			} else {
				e.printf(cc, "Shift:    %s\n", i18n.T(e.lang, "no_open_shift"))
			}
			if st.Customer != "" {
				e.printf(cc, "Customer: %s\n", customerLabel(st.Customer, st.CustomerName))
			}
			return nil
		},
	}
}

func customerLabel(id, name string) string {
	if name == "" || name == id {
		return id
	}
	return id + " - " + name
}
