package models

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is the externally visible chat-history shape.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ThreadMessage is one message as stored on the remote thread. Segments holds
// the text-typed content parts in provider order; Hidden marks priming messages
// that never appear in user-visible history.
type ThreadMessage struct {
	ID        string
	Role      Role
	Segments  []string
	Hidden    bool
	CreatedAt int64
}

// Text concatenates all text segments of the message.
func (m ThreadMessage) Text() string {
	var content string
	for _, seg := range m.Segments {
		content += seg
	}
	return content
}
