package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/deskwire/pulse/internal/core/notify"
	"github.com/deskwire/pulse/internal/rest"
	"github.com/deskwire/pulse/internal/state"
	"github.com/deskwire/pulse/pkg/iojson"
)

type LsCmd struct {
	flags *Flags

	// flags
	jsonOutput bool
	unreadOnly bool
	limit      int
}

// NewLsCmd creates a new ls command
func NewLsCmd(flags *Flags) *LsCmd {
	return &LsCmd{flags: flags}
}

// Register adds the ls command to the application
func (cmd *LsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "ls",
		Usage:     "List notifications",
		UsageText: "pulse ls [--json] [--unread] [--limit N]",
		Description: `Displays the notification list, freshest first. The server copy is
fetched and merged into the local cache; when the server is unreachable
the cached list is shown instead.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON",
				Destination: &cmd.jsonOutput,
			},
			&cli.BoolFlag{
				Name:        "unread",
				Usage:       "only show unread notifications",
				Destination: &cmd.unreadOnly,
			},
			&cli.IntFlag{
				Name:        "limit",
				Usage:       "maximum number of notifications to fetch",
				Value:       50,
				Destination: &cmd.limit,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *LsCmd) run(ctx context.Context, c *cli.Command) error {
	holder := state.New(cmd.flags.REST(), cmd.flags.Store())

	if err := holder.Fetch(ctx, rest.ListOptions{Limit: cmd.limit, UnreadOnly: cmd.unreadOnly}); err != nil {
		return fmt.Errorf("fetch notifications: %w", err)
	}
	if holder.Offline() {
		fmt.Fprintln(os.Stderr, "server unreachable, showing cached notifications")
	}

	items := holder.Items()
	if cmd.unreadOnly {
		unread := items[:0]
		for _, n := range items {
			if !n.Read {
				unread = append(unread, n)
			}
		}
		items = unread
	}

	out := c.Root().Writer

	if cmd.jsonOutput {
		return iojson.WriteWith(out, os.Stderr, items)
	}

	if len(items) == 0 {
		fmt.Fprintln(os.Stderr, "No notifications")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tREAD\tTIME\tMESSAGE")
	for _, n := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			n.ID, n.Type, readMark(n), n.Timestamp.Local().Format("Jan 02 15:04"), n.Message)
	}
	return w.Flush()
}

func readMark(n notify.Notification) string {
	if n.Read {
		return "yes"
	}
	return "no"
}
