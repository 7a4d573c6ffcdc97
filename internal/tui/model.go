package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/deskwire/pulse/internal/core/conn"
	"github.com/deskwire/pulse/internal/core/notify"
	"github.com/deskwire/pulse/internal/core/styles"
	"github.com/deskwire/pulse/internal/state"
)

// Messages pushed into the program from outside the update loop.
type (
	// ToastMsg surfaces one notification as a toast.
	ToastMsg struct{ Notification notify.Notification }
	// StateMsg reports a connection state transition.
	StateMsg struct{ State conn.State }
	// RefreshMsg signals that the notification list changed.
	RefreshMsg struct{}
)

type keyMap struct {
	Up          key.Binding
	Down        key.Binding
	MarkRead    key.Binding
	MarkAllRead key.Binding
	Delete      key.Binding
	Clear       key.Binding
	Dismiss     key.Binding
	Help        key.Binding
	Quit        key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		MarkRead:    key.NewBinding(key.WithKeys("enter", "r"), key.WithHelp("enter/r", "mark read")),
		MarkAllRead: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "mark all read")),
		Delete:      key.NewBinding(key.WithKeys("d", "x"), key.WithHelp("d", "delete")),
		Clear:       key.NewBinding(key.WithKeys("C"), key.WithHelp("C", "clear all")),
		Dismiss:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "dismiss toast")),
		Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.MarkRead, k.MarkAllRead, k.Delete, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.MarkRead, k.MarkAllRead},
		{k.Delete, k.Clear, k.Dismiss, k.Quit},
	}
}

// Model is the live notification feed.
type Model struct {
	holder    *state.Holder
	toasts    *ToastController
	toastView *ToastView
	keys      keyMap
	help      help.Model

	width    int
	height   int
	cursor   int
	conn     conn.State
	lastTick time.Time
}

// NewModel creates the feed model over the given state holder.
func NewModel(holder *state.Holder, toasts *ToastController) *Model {
	return &Model{
		holder:    holder,
		toasts:    toasts,
		toastView: NewToastView(toasts),
		keys:      defaultKeyMap(),
		help:      help.New(),
		conn:      conn.StateDisconnected,
	}
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case ToastMsg:
		m.toasts.Replace(msg.Notification)
		if !m.toasts.Ticking() {
			m.toasts.SetTicking(true)
			m.lastTick = time.Now()
			return m, scheduleToastTick()
		}
		return m, nil

	case toastTickMsg:
		now := time.Time(msg)
		m.toasts.Tick(now.Sub(m.lastTick))
		m.lastTick = now
		if !m.toasts.HasToasts() {
			m.toasts.SetTicking(false)
			return m, nil
		}
		return m, scheduleToastTick()

	case StateMsg:
		m.conn = msg.State
		return m, nil

	case RefreshMsg:
		m.clampCursor()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctx := context.Background()
	items := m.holder.Items()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(items)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.MarkRead):
		if m.cursor < len(items) {
			m.holder.MarkRead(ctx, items[m.cursor].ID)
		}

	case key.Matches(msg, m.keys.MarkAllRead):
		m.holder.MarkAllRead(ctx)

	case key.Matches(msg, m.keys.Delete):
		if m.cursor < len(items) {
			m.holder.Remove(ctx, items[m.cursor].ID)
			m.clampCursor()
		}

	case key.Matches(msg, m.keys.Clear):
		m.holder.Clear(ctx)
		m.cursor = 0

	case key.Matches(msg, m.keys.Dismiss):
		m.toasts.Dismiss()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}

	return m, nil
}

func (m *Model) clampCursor() {
	if n := len(m.holder.Items()); m.cursor >= n && n > 0 {
		m.cursor = n - 1
	} else if n == 0 {
		m.cursor = 0
	}
}

func (m *Model) View() string {
	items := m.holder.Items()

	header := m.renderHeader(items)
	body := m.renderList(items)
	footer := m.help.View(m.keys)

	view := lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", styles.HelpStyle.Render(footer))

	if toasts := m.toastView.Align(m.width); toasts != "" {
		view = lipgloss.JoinVertical(lipgloss.Left, view, toasts)
	}
	return view
}

func (m *Model) renderHeader(items []notify.Notification) string {
	title := styles.PanelTitleStyle.Render(styles.IconBell + " Notifications")

	badge := ""
	if unread := notify.UnreadCount(items); unread > 0 {
		badge = " " + styles.BadgeStyle.Render(fmt.Sprintf("%d", unread))
	}

	var status string
	switch m.conn {
	case conn.StateConnected:
		status = styles.StatusConnectedStyle.Render(styles.IconConnected + " live")
	case conn.StateConnecting, conn.StateReconnecting:
		status = styles.StatusReconnectingStyle.Render(styles.IconReconnecting + " " + string(m.conn))
	default:
		status = styles.StatusOfflineStyle.Render(styles.IconOffline + " offline")
	}
	if m.holder.Offline() {
		status = styles.StatusOfflineStyle.Render(styles.IconOffline + " cached")
	}

	return title + badge + "  " + status
}

func (m *Model) renderList(items []notify.Notification) string {
	if len(items) == 0 {
		return styles.ItemReadStyle.Render("No notifications.")
	}

	rows := make([]string, 0, len(items))
	for i, n := range items {
		marker := styles.IconRead
		style := styles.ItemReadStyle
		if !n.Read {
			marker = styles.IconUnread
			style = styles.ItemUnreadStyle
		}
		if i == m.cursor {
			style = styles.ItemSelectedStyle
		}

		line := fmt.Sprintf("%s %s %s",
			marker,
			style.Render(n.Message),
			styles.ItemTimeStyle.Render(relTime(n.Timestamp, time.Now())),
		)
		rows = append(rows, line)
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// relTime renders a compact relative timestamp for list rows.
func relTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
