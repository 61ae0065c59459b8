package dispatch

// Status classifies how an interaction ended.
type Status int

const (
	StatusOK Status = iota
	StatusFailed
	StatusTimedOut
	// StatusRejected means the debounce window was still open.
	StatusRejected
	// StatusDenied means the caller is not allowed. Nothing is rendered.
	StatusDenied
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFailed:
		return "failed"
	case StatusTimedOut:
		return "timed_out"
	case StatusRejected:
		return "rejected"
	case StatusDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Outcome is the final answer to one interaction.
type Outcome struct {
	Status   Status
	Text     string
	Keyboard Keyboard
}

// Reply is what a Presenter renders.
type Reply struct {
	Text string
	// Keyboard replaces the message keyboard. Nil removes it.
	Keyboard Keyboard
}

// User-facing texts.
const (
	TextMenu             = "🚀 Server manager\n\nChoose an action:"
	TextPleaseWait       = "⏳ Please wait before pressing again"
	TextCancelled        = "❌ Operation cancelled"
	TextUnknownCommand   = "🤷 Unknown command\n\nChoose an action:"
	TextConfirmExpired   = "⌛ Confirmation expired\n\nChoose an action:"
	TextConfirmShutdown  = "⚠️ Confirmation\n\nAre you sure you want to shut down the server?"
	TextWakeProgress     = "⏳ Sending power-on command..."
	TextShutdownProgress = "⏳ Sending power-off command..."
	TextStatusProgress   = "⏳ Checking server status..."
	TextWakeOK           = "🔌 Magic packet sent!\n\nThe server should start within 30 seconds."
	TextWakeFailed       = "❌ Failed to send the power-on command.\nCheck network settings."
	TextShutdownOK       = "🔴 Power-off command sent!"
	TextShutdownFailed   = "❌ Failed to send the power-off command.\nCheck SSH settings."
	TextStatusOnline     = "🟢 Server online"
	TextStatusDegraded   = "🟢 Server online\n\nSSH tunnel is up, details unavailable."
	TextStatusOffline    = "🔴 Server offline\n\nSSH tunnel is not responding."
	TextStatusFailed     = "❌ Failed to check server status.\nCheck SSH settings."
	TextStatusTimedOut   = "⏱️ Status check timed out!"
	TextNotConfigured    = "❌ This action is not available."
)
