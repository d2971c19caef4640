package chat

// Role tags a dialogue message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a session's dialogue history as exposed to callers.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
