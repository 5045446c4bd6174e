// Command pos is the cashier CLI. It drives the same cart and shift
// workflow as the gateway, over the same local store.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/diewo77/go-pos/internal/app"
	"github.com/diewo77/go-pos/internal/config"
	"github.com/diewo77/go-pos/internal/services"
	"github.com/diewo77/go-pos/internal/store"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	_ = godotenv.Load()
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		code := exitFailure
		var ec cli.ExitCoder
		if errors.As(err, &ec) {
			code = ec.ExitCode()
		}
		os.Exit(code)
	}
}

// env is what every command works with, built in the app's Before hook.
type env struct {
	cfg  *config.Config
	c    *app.Container
	lang string
	json bool
}

func newApp() *cli.App {
	e := &env{}
	return &cli.App{
		Name:  "pos",
		Usage: "point of sale cashier for Frappe/ERPNext",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "lang", Usage: "message language (id, en)", EnvVars: []string{"POS_LANG"}},
			&cli.BoolFlag{Name: "json", Usage: "print JSON instead of text"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log workflow steps to stderr"},
		},
		Before: func(cc *cli.Context) error {
			if !cc.Bool("verbose") {
				log.SetOutput(io.Discard)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			db, err := store.Open(cfg.Store)
			if err != nil {
				return err
			}
			c, err := app.New(cfg, db)
			if err != nil {
				return err
			}
			e.cfg, e.c, e.json = cfg, c, cc.Bool("json")
			e.lang = cc.String("lang")
			if e.lang == "" {
				e.lang = cfg.App.Lang
			}
			return nil
		},
		After: func(cc *cli.Context) error {
			if e.c == nil {
				return nil
			}
			sqlDB, err := e.c.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
		ExitErrHandler: func(cc *cli.Context, err error) {},
		Commands: []*cli.Command{
			loginCommand(e),
			logoutCommand(e),
			whoamiCommand(e),
			shiftCommand(e),
			itemsCommand(e),
			customersCommand(e),
			customerCommand(e),
			cartCommand(e),
			invoicesCommand(e),
			receiptCommand(e),
		},
	}
}

// state restores the logged-in session.
func (e *env) state(cc *cli.Context) (*services.AppState, error) {
	st, err := e.c.Session.Restore(cc.Context)
	if err != nil {
		return nil, e.fail(err)
	}
	return st, nil
}

// selling restores the session and requires an open shift.
func (e *env) selling(cc *cli.Context) (*services.AppState, error) {
	st, err := e.state(cc)
	if err != nil {
		return nil, err
	}
	if _, err := e.c.RequireShift(cc.Context, st); err != nil {
		return nil, e.fail(err)
	}
	return st, nil
}

// printJSON writes v indented when --json is set and reports whether it did.
func (e *env) printJSON(cc *cli.Context, v any) (bool, error) {
	if !e.json {
		return false, nil
	}
	enc := json.NewEncoder(cc.App.Writer)
	enc.SetIndent("", "  ")
	return true, enc.Encode(v)
}

func (e *env) printf(cc *cli.Context, format string, args ...any) {
	fmt.Fprintf(cc.App.Writer, format, args...)
}
