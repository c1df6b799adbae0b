package model

import "time"

// Message roles in a session history
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged entry of the conversation history
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is everything remembered about one conversation
type Session struct {
	ID        string              `json:"id"`
	Context   ConversationContext `json:"context"`
	History   []Message           `json:"history"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Turn is the audit record of one request/reply exchange
type Turn struct {
	TurnID         string              `db:"turn_id"`
	SessionID      string              `db:"session_id"`
	Message        string              `db:"message"`
	Intent         string              `db:"intent"`
	Reply          string              `db:"reply"`
	Context        ConversationContext `db:"context"`
	Embedding      []float32           `db:"-"`
	ResponseTimeMs int64               `db:"response_time_ms"`
}
