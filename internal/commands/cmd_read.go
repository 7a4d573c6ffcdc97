package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/deskwire/pulse/internal/state"
)

type ReadCmd struct {
	flags *Flags

	// flags
	all bool
}

// NewReadCmd creates a new read command
func NewReadCmd(flags *Flags) *ReadCmd {
	return &ReadCmd{flags: flags}
}

// Register adds the read command to the application
func (cmd *ReadCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "read",
		Usage:     "Mark notifications as read",
		UsageText: "pulse read <id> | pulse read --all",
		Description: `Marks the given notification (or all of them) read. The local cache is
updated immediately; a failing server call is logged but never undoes
the local change.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "all",
				Aliases:     []string{"a"},
				Usage:       "mark every notification read",
				Destination: &cmd.all,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *ReadCmd) run(ctx context.Context, c *cli.Command) error {
	holder := state.New(cmd.flags.REST(), cmd.flags.Store())

	if cmd.all {
		holder.MarkAllRead(ctx)
		return nil
	}

	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("notification id required (or use --all)")
	}
	holder.MarkRead(ctx, id)
	return nil
}
