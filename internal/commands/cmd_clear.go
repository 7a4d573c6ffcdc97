package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/deskwire/pulse/internal/state"
)

type ClearCmd struct {
	flags *Flags
}

// NewClearCmd creates a new clear command
func NewClearCmd(flags *Flags) *ClearCmd {
	return &ClearCmd{flags: flags}
}

// Register adds the clear command to the application
func (cmd *ClearCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "clear",
		Usage:     "Delete notifications",
		UsageText: "pulse clear [id]",
		Description: `Deletes one notification by id, or every app notification when no id is
given. Applies locally first; a failing server call never restores the
local copy.`,
		Action: cmd.run,
	})
	return app
}

func (cmd *ClearCmd) run(ctx context.Context, c *cli.Command) error {
	holder := state.New(cmd.flags.REST(), cmd.flags.Store())

	if id := c.Args().First(); id != "" {
		holder.Remove(ctx, id)
		fmt.Fprintf(c.Root().Writer, "removed %s\n", id)
		return nil
	}

	holder.Clear(ctx)
	fmt.Fprintln(c.Root().Writer, "cleared notifications")
	return nil
}
