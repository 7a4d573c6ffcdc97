package commands

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/deskwire/pulse/internal/core/conn"
	"github.com/deskwire/pulse/internal/core/eventbus"
	"github.com/deskwire/pulse/internal/core/logging"
	"github.com/deskwire/pulse/internal/core/notify"
	"github.com/deskwire/pulse/internal/dedup"
	"github.com/deskwire/pulse/internal/manager"
	"github.com/deskwire/pulse/internal/rest"
	"github.com/deskwire/pulse/internal/socket"
	"github.com/deskwire/pulse/internal/state"
	"github.com/deskwire/pulse/internal/tui"
)

type ListenCmd struct {
	flags *Flags
}

// NewListenCmd creates the listen command.
func NewListenCmd(flags *Flags) *ListenCmd {
	return &ListenCmd{flags: flags}
}

// Register adds the listen command to the application.
func (cmd *ListenCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "listen",
		Usage:     "Open the live notification feed",
		UsageText: "pulse listen",
		Description: `Connects to the support-desk real-time endpoint and renders incoming
notifications as toasts over the persistent notification panel.

While the server is unreachable the panel serves the local cache and the
connection is retried with backoff in the background.`,
		Action: cmd.run,
	})
	return app
}

func (cmd *ListenCmd) run(ctx context.Context, _ *cli.Command) error {
	cfg := cmd.flags.Config

	bus := eventbus.New(64)
	eventbus.RegisterDebugLogger(bus, logging.Component("eventbus"))
	busCtx, stopBus := context.WithCancel(ctx)
	defer stopBus()
	go bus.Start(busCtx)

	store := cmd.flags.Store()
	filter := dedup.New(cfg.Dedup.Window.Std(), cfg.Dedup.ThrottleWindow.Std(), cfg.Dedup.PurgeAfter.Std())
	mgr := manager.New(store, filter, manager.WithBus(bus), manager.WithToastDuration(cfg.Toast.Duration.Std()))

	api := cmd.flags.REST()
	holder := state.New(api, store, state.WithNotifier(mgr))

	sock := socket.NewManager(
		socket.Config{
			URL:            cfg.SocketOrigin + socket.Path,
			ConnectTimeout: cfg.Socket.ConnectTimeout.Std(),
			RetryDelay:     cfg.Socket.RetryDelay.Std(),
			Backoff: socket.Backoff{
				Base:      cfg.Socket.BackoffBase.Std(),
				Cap:       cfg.Socket.BackoffCap.Std(),
				MaxJitter: cfg.Socket.MaxJitter.Std(),
			},
			MaxReconnects:      cfg.Socket.MaxReconnects,
			NavigationDebounce: cfg.Socket.NavigationDebounce.Std(),
		},
		socket.NewDialer(cfg.Socket.ConnectTimeout.Std()),
		socket.WithBus(bus),
		socket.WithRefresher(api, cfg.Auth.RefreshToken),
		socket.WithFlush(func(ctx context.Context) ([]socket.Frame, error) {
			queued, err := store.OutboxDrain(ctx)
			if err != nil {
				return nil, err
			}
			frames := make([]socket.Frame, 0, len(queued))
			for _, q := range queued {
				frames = append(frames, socket.Frame{Event: q.Event, Payload: q.Payload})
			}
			return frames, nil
		}),
	)

	toasts := tui.NewToastController(cfg.Toast.MaxVisible)
	model := tui.NewModel(holder, toasts)
	program := tea.NewProgram(model, tea.WithAltScreen())

	// Inbound socket notifications enter the pipeline; everything that
	// clears the filter lands in the panel via the bus.
	sock.OnNotification(func(n notify.Notification) {
		mgr.Publish(ctx, n)
	})
	bus.SubscribeNotificationPublished(func(p eventbus.NotificationPublishedPayload) {
		if p.Notification.Persistent() {
			holder.Accept(p.Notification)
		}
	})
	bus.SubscribeForcedLogout(func(p eventbus.ForcedLogoutPayload) {
		mgr.System(ctx, "Session expired, please sign in again", notify.TypeError)
	})

	mgr.OnToast(func(n notify.Notification) {
		program.Send(tui.ToastMsg{Notification: n})
	})
	sock.OnStateChange(func(s conn.State) {
		program.Send(tui.StateMsg{State: s})
	})
	holder.OnChange(func() {
		program.Send(tui.RefreshMsg{})
	})

	go func() {
		mgr.SetReady()

		if err := holder.Fetch(ctx, rest.ListOptions{Limit: cfg.Store.MaxEntries}); err != nil {
			log.Warn().Err(err).Msg("initial fetch failed")
		}

		token := cfg.Auth.Token()
		if token == "" {
			log.Warn().Str("env", cfg.Auth.TokenEnv).Msg("no credential set, staying offline")
			mgr.System(ctx, "Connection Error", notify.TypeError)
			return
		}
		if err := sock.Connect(ctx, token); err != nil {
			log.Warn().Err(err).Msg("initial connect failed, retrying in background")
		}
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run feed: %w", err)
	}
	sock.Disconnect()
	return nil
}
