package chat

// Package chat holds the records exchanged with the remote chat service and the
// identity rules used to reconcile them.
//
// Records coming from the service are heterogeneous: an identifier may be carried
// under `_id` (document stores) or `id`. Everything above the gateway works with the
// canonical identifier returned by CanonicalID, which is why the reconciler writes
// it back into `_id`.

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Chat is one conversation thread as listed by the service.
type Chat struct {
	RecordID      string `json:"_id,omitempty" yaml:"_id,omitempty"`
	ID            string `json:"id,omitempty" yaml:"id,omitempty"`
	Title         string `json:"title" yaml:"title"`
	LastMessageAt string `json:"lastMessageAt,omitempty" yaml:"lastMessageAt,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// Message is a single turn inside a chat. Content is never edited after creation.
type Message struct {
	RecordID  string `json:"_id,omitempty" yaml:"_id,omitempty"`
	ID        string `json:"id,omitempty" yaml:"id,omitempty"`
	Chat      string `json:"chat" yaml:"chat"`
	Role      Role   `json:"role" yaml:"role"`
	Content   string `json:"content" yaml:"content"`
	CreatedAt string `json:"createdAt" yaml:"createdAt"`
}

// CreateChatRequest is the payload for creating a chat, optionally seeded with the
// first user message.
type CreateChatRequest struct {
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}
