package entity

// SessionState is where a chat is in the inspection flow.
type SessionState string

const (
	StateMainMenu  SessionState = "main_menu" // no wizard running
	StateCapturing SessionState = "capturing" // guided capture in progress
	StateAnalyzing SessionState = "analyzing" // upload and inference running
	StateReviewing SessionState = "reviewing" // results shown
)

// Session represents one inspector talking to the bot.
type Session struct {
	ID     int64        // Telegram User ID
	ChatID int64        // Telegram Chat ID
	State  SessionState // current step of the flow
}

// NewSession creates a session in the main menu.
func NewSession(userID, chatID int64) *Session {
	return &Session{
		ID:     userID,
		ChatID: chatID,
		State:  StateMainMenu,
	}
}

// SetState updates the session state.
func (s *Session) SetState(state SessionState) {
	s.State = state
}

// Busy reports whether an analysis is running.
func (s *Session) Busy() bool {
	return s.State == StateAnalyzing
}
