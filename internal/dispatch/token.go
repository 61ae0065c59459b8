package dispatch

// Token identifies what the user asked for.
type Token int

const (
	// TokenUnknown is any callback data the bot did not issue.
	TokenUnknown Token = iota
	// TokenStart opens the main menu. It comes from chat commands, never
	// from a button.
	TokenStart
	TokenWake
	TokenShutdownConfirm
	TokenShutdownYes
	TokenStatus
	TokenCancel
)

var tokenData = map[Token]string{
	TokenWake:            "wol",
	TokenShutdownConfirm: "shutdown_confirm",
	TokenShutdownYes:     "shutdown_yes",
	TokenStatus:          "status",
	TokenCancel:          "cancel",
}

// ParseToken maps button callback data to a token. Anything that is not
// one of the five button payloads is TokenUnknown.
func ParseToken(data string) Token {
	for tok, s := range tokenData {
		if s == data {
			return tok
		}
	}
	return TokenUnknown
}

// Data returns the callback payload carried by buttons for t, or "" for
// tokens no button carries.
func (t Token) Data() string {
	return tokenData[t]
}

func (t Token) String() string {
	switch t {
	case TokenStart:
		return "start"
	case TokenUnknown:
		return "unknown"
	default:
		return tokenData[t]
	}
}
