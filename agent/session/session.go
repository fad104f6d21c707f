package session

import (
	contractx "github.com/sivanlv/pharmassist/agent/contract"
)

// DefaultWindow keeps the most recent 10 exchanges (20 entries).
const DefaultWindow = 20

// Session holds a connection's trailing conversation window. It lives only
// as long as the connection; one turn completes before the next is read, so
// no locking is needed.
type Session struct {
	window int
	turns  []contractx.Turn
}

func New(window int) *Session {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Session{window: window}
}

// Window returns a copy of the current trailing turns, oldest first.
func (s *Session) Window() []contractx.Turn {
	out := make([]contractx.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Append records a finalized exchange and truncates to the window size,
// discarding oldest entries first.
func (s *Session) Append(userText, assistantText string) {
	s.turns = append(s.turns,
		contractx.Turn{Role: contractx.RoleUser, Content: userText},
		contractx.Turn{Role: contractx.RoleAssistant, Content: assistantText},
	)
	if len(s.turns) > s.window {
		s.turns = s.turns[len(s.turns)-s.window:]
	}
}

func (s *Session) Len() int {
	return len(s.turns)
}
