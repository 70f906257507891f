package chat

import (
	"context"
	"errors"

	"github.com/zhouzirui/agora/backend/internal/model/chat"
)

var (
	ErrConversationIDRequired = errors.New("conversation id is required")
	ErrConversationNotFound   = errors.New("conversation not found")
)

// Store persists conversations by id. Implementations must be safe for concurrent use.
type Store interface {
	Create(ctx context.Context, conversation chat.Conversation) error
	Get(ctx context.Context, id string) (chat.Conversation, error)
	// List returns every conversation, oldest first.
	List(ctx context.Context) ([]chat.Conversation, error)
	// Update applies mutate to the stored conversation atomically and returns the result.
	Update(ctx context.Context, id string, mutate func(*chat.Conversation) error) (chat.Conversation, error)
}
