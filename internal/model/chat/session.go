package chat

import "time"

// Kind distinguishes the two conversation types.
type Kind string

const (
	KindGenerator Kind = "generator"
	KindChat      Kind = "chat"
)

// SessionInfo captures a live conversation owned by one client workflow.
type SessionInfo struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	PersonaID string    `json:"personaId,omitempty"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"createdAt"`
}
