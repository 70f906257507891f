package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/agora/backend/internal/model/chat"
	"github.com/zhouzirui/agora/backend/internal/orchestration"
)

// DefaultConversationName is used when a conversation is started without a name.
const DefaultConversationName = "New Conversation"

// Asker runs a group discussion for one question.
type Asker interface {
	AskWithObserver(ctx context.Context, question string, collector *orchestration.Collector) (*orchestration.Result, error)
}

// Exchange is one answered question.
type Exchange struct {
	Conversation chat.Conversation
	Question     chat.Message
	Reply        chat.Message
	Result       *orchestration.Result
}

// Service encapsulates conversation state management.
type Service struct {
	store  Store
	asker  Asker
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates the conversation service. asker may be nil for read-only use.
func NewService(store Store, asker Asker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		asker:  asker,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With(zap.String("component", "conversation_service")),
	}
}

// StartConversation provisions an empty conversation.
func (s *Service) StartConversation(ctx context.Context, name string) (chat.Conversation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultConversationName
	}
	now := s.now()
	conversation := chat.Conversation{
		ID:        uuid.NewString(),
		Name:      name,
		Messages:  []chat.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, conversation); err != nil {
		return chat.Conversation{}, err
	}
	return conversation, nil
}

// GetConversation returns one conversation with its messages in chronological order.
func (s *Service) GetConversation(ctx context.Context, id string) (chat.Conversation, error) {
	conversation, err := s.store.Get(ctx, id)
	if err != nil {
		return chat.Conversation{}, err
	}
	conversation.SortMessages()
	return conversation, nil
}

// ListConversations returns every conversation, oldest first, messages in chronological order.
func (s *Service) ListConversations(ctx context.Context) ([]chat.Conversation, error) {
	conversations, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].CreatedAt.Before(conversations[j].CreatedAt)
	})
	for i := range conversations {
		conversations[i].SortMessages()
	}
	return conversations, nil
}

// AppendMessages adds messages to a conversation, stamping missing ids and timestamps.
func (s *Service) AppendMessages(ctx context.Context, id string, messages ...chat.Message) (chat.Conversation, error) {
	now := s.now()
	for i := range messages {
		if messages[i].ID == "" {
			messages[i].ID = uuid.NewString()
		}
		if messages[i].Timestamp.IsZero() {
			messages[i].Timestamp = now
		}
	}
	return s.store.Update(ctx, id, func(conversation *chat.Conversation) error {
		conversation.Messages = append(conversation.Messages, messages...)
		conversation.UpdatedAt = now
		return nil
	})
}

// Ask runs a discussion for question inside conversation id and records both sides of the
// exchange. Nothing is recorded when the discussion fails. collector may be nil.
func (s *Service) Ask(ctx context.Context, id, question string, collector *orchestration.Collector) (Exchange, error) {
	if s.asker == nil {
		return Exchange{}, errors.New("conversation service has no orchestrator")
	}
	if _, err := s.store.Get(ctx, id); err != nil {
		return Exchange{}, err
	}

	asked := chat.Message{ID: uuid.NewString(), Sender: chat.SenderUser, Content: question, Timestamp: s.now()}
	result, err := s.asker.AskWithObserver(ctx, question, collector)
	if err != nil {
		s.logger.Warn("discussion failed", zap.String("conversation_id", id), zap.Error(err))
		return Exchange{}, fmt.Errorf("ask conversation %s: %w", id, err)
	}
	reply := chat.Message{ID: uuid.NewString(), Sender: chat.SenderAgent, Content: result.Answer, Timestamp: s.now()}

	conversation, err := s.AppendMessages(ctx, id, asked, reply)
	if err != nil {
		return Exchange{}, fmt.Errorf("record exchange in conversation %s: %w", id, err)
	}
	conversation.SortMessages()

	s.logger.Info("question answered",
		zap.String("conversation_id", id),
		zap.String("run_id", result.RunID),
		zap.Int("invocations", result.Invocations),
	)
	return Exchange{Conversation: conversation, Question: asked, Reply: reply, Result: result}, nil
}
