package styles

// Tip: To find icons use https://github.com/loichyan/nerdfix

var (
	IconBell          = "\U000F009A" // 󰂚
	IconNotifySuccess = ""     //
	IconNotifyError   = ""     //
	IconNotifyWarning = ""     //
	IconNotifyInfo    = ""     //
)

// Read-state markers for the notification panel.
var (
	IconUnread = "●"
	IconRead   = "○"
)

// Connection status markers.
var (
	IconConnected    = "" //
	IconReconnecting = "" //
	IconOffline      = "" //
)
