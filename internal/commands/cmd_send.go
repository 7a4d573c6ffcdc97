package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/deskwire/pulse/internal/core/notify"
	"github.com/deskwire/pulse/internal/socket"
	"github.com/deskwire/pulse/internal/store/jsonfile"
	"github.com/deskwire/pulse/pkg/iojson"
)

type SendCmd struct {
	flags  *Flags
	reader iojson.FileReader[notify.Notification]

	// flags
	message  string
	typ      string
	title    string
	category string
}

// NewSendCmd creates a new send command
func NewSendCmd(flags *Flags) *SendCmd {
	return &SendCmd{flags: flags}
}

// Register adds the send command to the application
func (cmd *SendCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "send",
		Usage:     "Publish a notification",
		UsageText: "pulse send -m <message> [--type info] [--title t] | pulse send -f payload.json",
		Description: `Posts a notification to the support-desk API. When the server is
unreachable the notification is queued locally and replayed over the
socket on the next successful connection.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "message",
				Aliases:     []string{"m"},
				Usage:       "notification message",
				Destination: &cmd.message,
			},
			&cli.StringFlag{
				Name:        "type",
				Usage:       "severity (success, error, info, warning)",
				Value:       string(notify.TypeInfo),
				Destination: &cmd.typ,
			},
			&cli.StringFlag{
				Name:        "title",
				Usage:       "optional title",
				Destination: &cmd.title,
			},
			&cli.StringFlag{
				Name:        "category",
				Usage:       "routing category (app, system)",
				Value:       string(notify.CategoryApp),
				Destination: &cmd.category,
			},
			cmd.reader.Flag(),
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *SendCmd) run(ctx context.Context, c *cli.Command) error {
	n, err := cmd.buildNotification()
	if err != nil {
		return err
	}

	api := cmd.flags.REST()
	if err := api.Create(ctx, n); err == nil {
		fmt.Fprintf(c.Root().Writer, "sent %s\n", n.ID)
		return nil
	}

	// Server unreachable: queue for replay once the socket reconnects.
	frame, err := socket.NewFrame(socket.EventClientNotification, n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	store := cmd.flags.Store()
	if err := store.OutboxAdd(ctx, jsonfile.Queued{Event: frame.Event, Payload: frame.Payload}); err != nil {
		return fmt.Errorf("queue notification: %w", err)
	}

	fmt.Fprintf(c.Root().Writer, "server unreachable, queued %s for replay\n", n.ID)
	return nil
}

func (cmd *SendCmd) buildNotification() (notify.Notification, error) {
	if cmd.message == "" {
		n, err := cmd.reader.Read()
		if err != nil {
			return notify.Notification{}, fmt.Errorf("no --message given: %w", err)
		}
		if n.Message == "" {
			return notify.Notification{}, fmt.Errorf("notification payload missing message")
		}
		n.Normalize(time.Now())
		return n, nil
	}

	n := notify.Notification{
		Message:  cmd.message,
		Type:     notify.Type(cmd.typ),
		Category: notify.Category(cmd.category),
		Title:    cmd.title,
	}
	n.Normalize(time.Now())
	return n, nil
}
