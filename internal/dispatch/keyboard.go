package dispatch

// Button is one inline keyboard button.
type Button struct {
	Text  string
	Token Token
}

// Keyboard is a grid of buttons, row by row.
type Keyboard [][]Button

// MainMenu is shown when the bot is idle.
func MainMenu() Keyboard {
	return Keyboard{
		{
			{Text: "🔌 Power on", Token: TokenWake},
			{Text: "🔴 Power off", Token: TokenShutdownConfirm},
		},
		{
			{Text: "🟢 Status", Token: TokenStatus},
		},
	}
}

// ConfirmShutdown asks the user to confirm a power-off.
func ConfirmShutdown() Keyboard {
	return Keyboard{
		{
			{Text: "✅ Yes, shut down", Token: TokenShutdownYes},
			{Text: "❌ Cancel", Token: TokenCancel},
		},
	}
}
