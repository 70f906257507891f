package orchestration

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/zhouzirui/agora/backend/internal/model/participant"
)

// Orchestrator answers questions with the registered roster.
type Orchestrator struct {
	runtime *Runtime
	roster  participant.Store
	logger  *zap.Logger
}

func NewOrchestrator(runtime *Runtime, roster participant.Store, logger *zap.Logger) (*Orchestrator, error) {
	if runtime == nil {
		return nil, errors.New("runtime is required")
	}
	if roster == nil {
		return nil, errors.New("participant store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{runtime: runtime, roster: roster, logger: logger}, nil
}

// AskAgents runs a full discussion and returns only the final answer.
func (o *Orchestrator) AskAgents(ctx context.Context, question string) (string, error) {
	result, err := o.AskWithObserver(ctx, question, nil)
	if err != nil {
		return "", err
	}
	return result.Answer, nil
}

// AskWithObserver runs a discussion reporting progress to collector. A nil collector gets a
// private one.
func (o *Orchestrator) AskWithObserver(ctx context.Context, question string, collector *Collector) (*Result, error) {
	if collector == nil {
		collector = NewCollector(o.logger)
	}
	return o.runtime.Run(ctx, question, o.roster.List(), collector)
}

// Roster returns the participants every discussion uses.
func (o *Orchestrator) Roster() []participant.Participant {
	return o.roster.List()
}

// MaxQuestionLength is the longest accepted question, in characters.
func (o *Orchestrator) MaxQuestionLength() int {
	return o.runtime.Config().MaxQuestionLength
}
