package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/agora/backend/internal/model/chat"
)

// Service implements StreamingGateway on top of an eino chat model.
type Service struct {
	chatModel model.BaseChatModel
	leading   compose.Runnable[map[string]any, *schema.Message]
	trailing  compose.Runnable[map[string]any, *schema.Message]
	logger    *zap.Logger
}

// NewService compiles the prompt chains around chatModel.
func NewService(ctx context.Context, chatModel model.BaseChatModel, logger *zap.Logger) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	leading, err := compileChain(ctx, chatModel,
		schema.SystemMessage("{directive}"),
		schema.MessagesPlaceholder("history", false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compile participant chain: %w", err)
	}

	trailing, err := compileChain(ctx, chatModel,
		schema.MessagesPlaceholder("history", false),
		schema.SystemMessage("{directive}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compile moderator chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		leading:   leading,
		trailing:  trailing,
		logger:    logger.With(zap.String("component", "gateway")),
	}, nil
}

func compileChain(ctx context.Context, chatModel model.BaseChatModel, templates ...schema.MessagesTemplate) (compose.Runnable[map[string]any, *schema.Message], error) {
	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(prompt.FromMessages(schema.FString, templates...))
	chain.AppendChatModel(chatModel)
	return chain.Compile(ctx)
}

// Complete runs the chain and returns the reply text.
func (s *Service) Complete(ctx context.Context, req Request) (string, error) {
	response, err := s.runnable(req).Invoke(ctx, buildChainInput(req), callOptions(req)...)
	if err != nil {
		return "", fmt.Errorf("failed to run %s chain: %w", req.Purpose, err)
	}
	if response == nil {
		return "", fmt.Errorf("%s chain returned no message", req.Purpose)
	}

	s.logger.Debug("completion finished",
		zap.String("purpose", string(req.Purpose)),
		zap.Int("history", len(req.History)),
		zap.Int("length", len(response.Content)),
	)
	return response.Content, nil
}

// Stream runs the chain in streaming mode. The caller owns the returned reader.
func (s *Service) Stream(ctx context.Context, req Request) (*schema.StreamReader[*schema.Message], error) {
	stream, err := s.runnable(req).Stream(ctx, buildChainInput(req), callOptions(req)...)
	if err != nil {
		return nil, fmt.Errorf("failed to stream %s chain output: %w", req.Purpose, err)
	}
	return stream, nil
}

// GetChatModel 返回底层的聊天模型
func (s *Service) GetChatModel() model.BaseChatModel {
	return s.chatModel
}

func (s *Service) runnable(req Request) compose.Runnable[map[string]any, *schema.Message] {
	if req.Placement == DirectiveLast {
		return s.trailing
	}
	return s.leading
}

func callOptions(req Request) []compose.Option {
	if req.MaxTokens <= 0 {
		return nil
	}
	return []compose.Option{compose.WithChatModelOption(model.WithMaxTokens(req.MaxTokens))}
}

func buildChainInput(req Request) map[string]any {
	return map[string]any{
		"directive": strings.TrimSpace(req.Directive),
		"history":   buildHistoryMessages(req.History),
	}
}

// buildHistoryMessages maps transcript turns onto chat roles. Participant turns keep their author
// in the content so every persona can tell the other voices apart.
func buildHistoryMessages(turns []chat.Turn) []*schema.Message {
	history := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		switch turn.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(content))
		case chat.RoleParticipant:
			history = append(history, schema.AssistantMessage(turn.Name+": "+content, nil))
		case chat.RoleModerator:
			history = append(history, schema.SystemMessage(content))
		}
	}
	return history
}
