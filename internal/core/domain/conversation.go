package domain

type Role string

const (
	RoleSystem    Role = "system"
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
)

// DefaultMaxSessionTurns keeps the last three exchanges.
const DefaultMaxSessionTurns = 6

type ConversationTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ConversationSession is a sliding window over the most recent turns. It is
// not safe for concurrent use; stores guard it.
type ConversationSession struct {
	maxTurns int
	turns    []ConversationTurn
}

func NewConversationSession(maxTurns int) *ConversationSession {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxSessionTurns
	}
	return &ConversationSession{maxTurns: maxTurns}
}

func (s *ConversationSession) Reset() {
	s.turns = nil
}

// Append adds one human and one assistant turn, then drops the oldest turns
// beyond the window.
func (s *ConversationSession) Append(question, answer string) {
	s.turns = append(s.turns,
		ConversationTurn{Role: RoleHuman, Content: question},
		ConversationTurn{Role: RoleAssistant, Content: answer},
	)
	if overflow := len(s.turns) - s.maxTurns; overflow > 0 {
		s.turns = append([]ConversationTurn(nil), s.turns[overflow:]...)
	}
}

// Snapshot returns a copy of the turns, oldest first.
func (s *ConversationSession) Snapshot() []ConversationTurn {
	if len(s.turns) == 0 {
		return []ConversationTurn{}
	}
	return append([]ConversationTurn(nil), s.turns...)
}
