package chat

import (
	"context"
	"sort"
	"sync"

	"github.com/zhouzirui/agora/backend/internal/model/chat"
)

// MemoryStore keeps conversations in process memory, suitable for development and tests.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]chat.Conversation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: make(map[string]chat.Conversation)}
}

func (s *MemoryStore) Create(_ context.Context, conversation chat.Conversation) error {
	if conversation.ID == "" {
		return ErrConversationIDRequired
	}

	s.mu.Lock()
	s.conversations[conversation.ID] = conversation.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (chat.Conversation, error) {
	if id == "" {
		return chat.Conversation{}, ErrConversationIDRequired
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	conversation, ok := s.conversations[id]
	if !ok {
		return chat.Conversation{}, ErrConversationNotFound
	}
	return conversation.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context) ([]chat.Conversation, error) {
	s.mu.RLock()
	out := make([]chat.Conversation, 0, len(s.conversations))
	for _, conversation := range s.conversations {
		out = append(out, conversation.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, mutate func(*chat.Conversation) error) (chat.Conversation, error) {
	if id == "" {
		return chat.Conversation{}, ErrConversationIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.conversations[id]
	if !ok {
		return chat.Conversation{}, ErrConversationNotFound
	}
	updated := current.Clone()
	if err := mutate(&updated); err != nil {
		return chat.Conversation{}, err
	}
	s.conversations[id] = updated.Clone()
	return updated, nil
}
