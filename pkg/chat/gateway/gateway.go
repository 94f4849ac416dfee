package gateway

import (
	"context"

	"github.com/go-go-golems/parley/pkg/chat"
)

// Gateway is the remote chat service as seen by the orchestrator. Records are
// returned as the service sent them; identifier reconciliation happens upstream.
type Gateway interface {
	ListChats(ctx context.Context) ([]chat.Chat, error)
	CreateChat(ctx context.Context, req chat.CreateChatRequest) (*chat.Chat, error)
	ListMessages(ctx context.Context, chatID string) ([]chat.Message, error)
	SendMessage(ctx context.Context, chatID string, content string) (*SendMessageResponse, error)
}

// SendMessageResponse carries the assistant's reply. Messages may hold zero or more
// records; Chat is set when the service also returned an updated chat summary.
type SendMessageResponse struct {
	Chat     *chat.Chat
	Messages []chat.Message
}
