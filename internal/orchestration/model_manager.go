package orchestration

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/zhouzirui/agora/backend/internal/model/chat"
	"github.com/zhouzirui/agora/backend/internal/model/participant"
	"github.com/zhouzirui/agora/backend/internal/service/ai"
)

// ModelManager asks a moderator model for every decision and falls back to deterministic
// choices whenever the model's reply cannot be used.
type ModelManager struct {
	topic   string
	gateway ai.Gateway
	cfg     Config
	logger  *zap.Logger
}

// NewModelManager creates a manager for one discussion on topic.
func NewModelManager(topic string, gateway ai.Gateway, cfg Config, logger *zap.Logger) *ModelManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelManager{
		topic:   topic,
		gateway: gateway,
		cfg:     cfg.normalized(),
		logger:  logger.With(zap.String("component", "model_manager")),
	}
}

// ModelManagerFactory returns a ManagerFactory producing ModelManagers that share gateway.
func ModelManagerFactory(gateway ai.Gateway, cfg Config, logger *zap.Logger) ManagerFactory {
	return func(topic string) Manager {
		return NewModelManager(topic, gateway, cfg, logger)
	}
}

func (m *ModelManager) SelectNextSpeaker(ctx context.Context, transcript *chat.Transcript, roster []participant.Participant) (Decision[string], error) {
	decision := Decision[string]{Kind: KindNextSpeaker}
	if len(roster) == 0 {
		return decision, ErrInvalidInput
	}

	reply, err := m.gateway.Complete(ctx, ai.Request{
		Purpose:   ai.PurposeSelection,
		Directive: selectionDirective(m.topic, roster),
		Placement: ai.DirectiveLast,
		History:   transcript.Turns(),
		MaxTokens: m.cfg.DecisionMaxTokens,
	})
	if err != nil {
		return decision, gatewayError(ctx, "select next speaker", err)
	}

	speaker, err := m.decodeSpeaker(reply, roster)
	if err == nil {
		decision.Value = speaker.Name
		decision.Reason = speaker.reason
		return decision, nil
	}

	fallback, _ := fallbackSpeaker(transcript, roster)
	m.logger.Warn("speaker selection unusable, falling back",
		zap.Error(err),
		zap.String("reply", reply),
		zap.String("fallback", fallback.Name),
	)
	decision.Value = fallback.Name
	decision.Reason = ReasonSelectionFallback
	decision.Fallback = true
	return decision, nil
}

type selectedSpeaker struct {
	participant.Participant
	reason string
}

func (m *ModelManager) decodeSpeaker(reply string, roster []participant.Participant) (selectedSpeaker, error) {
	env, err := decodeReply(reply)
	if err != nil {
		return selectedSpeaker{}, err
	}
	name, err := env.text()
	if err != nil {
		return selectedSpeaker{}, err
	}
	p, err := resolveSpeaker(name, roster)
	if err != nil {
		return selectedSpeaker{}, err
	}
	return selectedSpeaker{Participant: p, reason: env.Reason}, nil
}

func (m *ModelManager) ShouldTerminate(ctx context.Context, transcript *chat.Transcript, invocations int) (Decision[bool], error) {
	decision := Decision[bool]{Kind: KindShouldTerminate}
	if invocations >= m.cfg.MaxInvocations {
		decision.Value = true
		decision.Reason = ReasonCeilingReached
		return decision, nil
	}

	reply, err := m.gateway.Complete(ctx, ai.Request{
		Purpose:   ai.PurposeTermination,
		Directive: terminationDirective(m.topic),
		Placement: ai.DirectiveLast,
		History:   transcript.Turns(),
		MaxTokens: m.cfg.DecisionMaxTokens,
	})
	if err == nil {
		var env envelope
		if env, err = decodeReply(reply); err == nil {
			var stop bool
			if stop, err = env.boolean(); err == nil {
				decision.Value = stop
				decision.Reason = env.Reason
				return decision, nil
			}
		}
	} else if err = gatewayError(ctx, "should terminate", err); errors.Is(err, ErrCanceled) {
		return decision, err
	}

	m.logger.Warn("termination check unusable, ending discussion",
		zap.Error(err),
		zap.String("reply", reply),
	)
	decision.Value = true
	decision.Reason = ReasonTerminationFallback
	decision.Fallback = true
	return decision, nil
}

func (m *ModelManager) ShouldRequestUserInput(context.Context, *chat.Transcript) (Decision[bool], error) {
	return Decision[bool]{Kind: KindRequestUserInput, Value: false, Reason: ReasonNoUserInput}, nil
}

func (m *ModelManager) FilterResults(ctx context.Context, transcript *chat.Transcript) (Decision[string], error) {
	decision := Decision[string]{Kind: KindFilteredResult}

	reply, err := m.gateway.Complete(ctx, ai.Request{
		Purpose:   ai.PurposeFilter,
		Directive: filterDirective(m.topic),
		Placement: ai.DirectiveLast,
		History:   transcript.Turns(),
		MaxTokens: m.cfg.FilterMaxTokens,
	})
	if err != nil {
		return decision, gatewayError(ctx, "filter results", err)
	}

	if env, err := decodeReply(reply); err == nil {
		if answer, err := env.text(); err == nil && strings.TrimSpace(answer) != "" {
			decision.Value = answer
			decision.Reason = env.Reason
			return decision, nil
		}
	}

	decision.Value = lastContribution(transcript)
	decision.Reason = ReasonFilterFallback
	decision.Fallback = true
	m.logger.Warn("closing statement empty, using last contribution", zap.String("reply", reply))
	return decision, nil
}
