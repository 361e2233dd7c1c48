package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"

	"github.com/bobmcallan/stockstash/internal/app"
	"github.com/bobmcallan/stockstash/internal/common"
	"github.com/bobmcallan/stockstash/internal/server"
)

// env is shared by every command.
type env struct {
	configPath string
	plain      bool
	out        io.Writer
	open       func(ctx context.Context) (*app.App, error) // overridden in tests
}

func (e *env) app(ctx context.Context) (*app.App, error) {
	if e.open != nil {
		return e.open(ctx)
	}
	return app.NewApp(ctx, e.configPath)
}

func (e *env) printMarkdown(md string) {
	if !e.plain {
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
		if err == nil {
			if out, err := r.Render(md); err == nil {
				fmt.Fprint(e.out, out)
				return
			}
		}
	}
	fmt.Fprint(e.out, md)
}

// withApp opens the app, runs fn and closes it again.
func (e *env) withApp(ctx context.Context, fn func(a *app.App) error) subcommands.ExitStatus {
	a, err := e.app(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if err := fn(a); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func commands(e *env) []subcommands.Command {
	return []subcommands.Command{
		&serveCmd{env: e},
		&usersCmd{env: e},
		&adminCmd{env: e, name: "promote", admin: true},
		&adminCmd{env: e, name: "demote", admin: false},
		&quoteCmd{env: e},
		&businessDayCmd{env: e},
	}
}

type serveCmd struct{ env *env }

func (*serveCmd) Name() string             { return "serve" }
func (*serveCmd) Synopsis() string         { return "run the HTTP server" }
func (*serveCmd) Usage() string            { return "stockstash serve\n" }
func (*serveCmd) SetFlags(_ *flag.FlagSet) {}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.withApp(ctx, func(a *app.App) error {
		common.PrintBanner(a.Config, a.Logger)
		defer common.PrintShutdownBanner(a.Logger)
		return server.NewServer(a).Run(ctx)
	})
}

type usersCmd struct{ env *env }

func (*usersCmd) Name() string             { return "users" }
func (*usersCmd) Synopsis() string         { return "list registered users" }
func (*usersCmd) Usage() string            { return "stockstash users\n" }
func (*usersCmd) SetFlags(_ *flag.FlagSet) {}

func (c *usersCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.withApp(ctx, func(a *app.App) error {
		users, err := a.Directory.List(ctx)
		if err != nil {
			return err
		}

		var b strings.Builder
		fmt.Fprintf(&b, "# Users (%d)\n\n", len(users))
		b.WriteString("| Username | Name | Brokerage | Admin | Positions | Watching | Joined |\n")
		b.WriteString("|---|---|---|---|---:|---:|---|\n")
		for _, u := range users {
			admin := ""
			if u.Admin {
				admin = "yes"
			}
			fmt.Fprintf(&b, "| %s | %s %s | %s | %s | %d | %d | %s |\n",
				mdEscape(u.Username), mdEscape(u.FirstName), mdEscape(u.LastName), mdEscape(u.Brokerage),
				admin, u.Positions, u.Watching, u.CreatedAt.Format("2006-01-02"))
		}
		c.env.printMarkdown(b.String())
		return nil
	})
}

func mdEscape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// adminCmd backs both promote and demote.
type adminCmd struct {
	env   *env
	name  string
	admin bool
}

func (c *adminCmd) Name() string { return c.name }
func (c *adminCmd) Synopsis() string {
	if c.admin {
		return "grant admin to a user"
	}
	return "revoke admin from a user"
}
func (c *adminCmd) Usage() string          { return "stockstash " + c.name + " <username>\n" }
func (*adminCmd) SetFlags(_ *flag.FlagSet) {}

func (c *adminCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	identifier := f.Arg(0)

	return c.env.withApp(ctx, func(a *app.App) error {
		out, err := a.Directory.SetAdmin(ctx, common.OperatorSession(), identifier, c.admin)
		if err != nil {
			return fmt.Errorf("%s %s: %w", c.name, identifier, err)
		}
		if !out.Changed {
			fmt.Fprintf(c.env.out, "%s unchanged\n", identifier)
			return nil
		}
		if c.admin {
			fmt.Fprintf(c.env.out, "%s is now an admin\n", identifier)
		} else {
			fmt.Fprintf(c.env.out, "%s is no longer an admin\n", identifier)
		}
		return nil
	})
}

type quoteCmd struct{ env *env }

func (*quoteCmd) Name() string             { return "quote" }
func (*quoteCmd) Synopsis() string         { return "show the latest close for tickers" }
func (*quoteCmd) Usage() string            { return "stockstash quote <ticker>...\n" }
func (*quoteCmd) SetFlags(_ *flag.FlagSet) {}

func (c *quoteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	tickers := make([]string, 0, f.NArg())
	for _, t := range f.Args() {
		tickers = append(tickers, strings.ToUpper(strings.TrimSpace(t)))
	}

	return c.env.withApp(ctx, func(a *app.App) error {
		quotes := a.Quotes.LatestQuotes(ctx, tickers)

		var b strings.Builder
		fmt.Fprintf(&b, "# Quotes as of %s\n\n", a.Quotes.Today().Format("2006-01-02"))
		b.WriteString("| Ticker | Close | Date |\n|---|---:|---|\n")
		seen := make(map[string]bool, len(tickers))
		for _, t := range tickers {
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			q := quotes[t]
			if !q.Available {
				fmt.Fprintf(&b, "| %s | n/a | |\n", mdEscape(t))
				continue
			}
			fmt.Fprintf(&b, "| %s | %s | %s |\n", mdEscape(t), a.Positions.Format(q.Price), q.Date.Format("2006-01-02"))
		}
		c.env.printMarkdown(b.String())
		return nil
	})
}

type businessDayCmd struct{ env *env }

func (*businessDayCmd) Name() string     { return "business-day" }
func (*businessDayCmd) Synopsis() string { return "print the most recent trading day" }
func (*businessDayCmd) Usage() string {
	return `stockstash business-day [YYYY-MM-DD]

  Prints the given date, or today, stepped back over weekends and the
  configured market holidays.
`
}
func (*businessDayCmd) SetFlags(_ *flag.FlagSet) {}

func (c *businessDayCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() > 1 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	ref := time.Now()
	if f.NArg() == 1 {
		d, err := time.Parse("2006-01-02", f.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
			return subcommands.ExitUsageError
		}
		ref = d
	}

	return c.env.withApp(ctx, func(a *app.App) error {
		fmt.Fprintln(c.env.out, a.Quotes.MostRecentBusinessDay(ref).Format("2006-01-02 (Monday)"))
		return nil
	})
}
