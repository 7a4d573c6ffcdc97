package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/deskwire/pulse/internal/core/notify"
	"github.com/deskwire/pulse/internal/core/styles"
)

type toastTickMsg time.Time

func scheduleToastTick() tea.Cmd {
	return tea.Tick(toastTickInterval, func(t time.Time) tea.Msg {
		return toastTickMsg(t)
	})
}

// ToastView renders the active toast stack.
type ToastView struct {
	controller *ToastController
}

func NewToastView(controller *ToastController) *ToastView {
	return &ToastView{controller: controller}
}

// View renders the toast stack as a single string with toasts stacked
// vertically (oldest at top, newest at bottom).
func (v *ToastView) View() string {
	toasts := v.controller.Toasts()
	if len(toasts) == 0 {
		return ""
	}

	rendered := make([]string, 0, len(toasts))
	for _, t := range toasts {
		rendered = append(rendered, renderToast(t))
	}

	return strings.Join(rendered, "\n")
}

// Align right-aligns the toast stack inside the given width so it sits
// in the terminal's lower-right corner when appended to the panel.
func (v *ToastView) Align(width int) string {
	content := v.View()
	if content == "" {
		return ""
	}
	return lipgloss.PlaceHorizontal(width, lipgloss.Right, content)
}

func renderToast(t toast) string {
	var icon string
	var style lipgloss.Style

	switch t.notification.Type {
	case notify.TypeSuccess:
		icon = styles.IconNotifySuccess
		style = styles.ToastSuccessStyle
	case notify.TypeError:
		icon = styles.IconNotifyError
		style = styles.ToastErrorStyle
	case notify.TypeWarning:
		icon = styles.IconNotifyWarning
		style = styles.ToastWarningStyle
	default:
		icon = styles.IconNotifyInfo
		style = styles.ToastInfoStyle
	}

	content := icon + " " + t.notification.Message
	if t.notification.Title != "" {
		content = icon + " " + t.notification.Title + ": " + t.notification.Message
	}
	return style.Width(toastWidth).Render(content)
}
