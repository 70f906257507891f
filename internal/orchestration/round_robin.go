package orchestration

import (
	"context"
	"strings"

	"github.com/zhouzirui/agora/backend/internal/model/chat"
	"github.com/zhouzirui/agora/backend/internal/model/participant"
)

// RoundRobinManager rotates through the roster in order and only stops at the ceiling.
// It never calls a model, which makes it useful offline and as a baseline.
type RoundRobinManager struct {
	cfg Config
}

func NewRoundRobinManager(cfg Config) *RoundRobinManager {
	return &RoundRobinManager{cfg: cfg.normalized()}
}

func RoundRobinManagerFactory(cfg Config) ManagerFactory {
	return func(string) Manager {
		return NewRoundRobinManager(cfg)
	}
}

func (m *RoundRobinManager) SelectNextSpeaker(_ context.Context, transcript *chat.Transcript, roster []participant.Participant) (Decision[string], error) {
	if len(roster) == 0 {
		return Decision[string]{Kind: KindNextSpeaker}, ErrInvalidInput
	}
	next := roster[transcript.ParticipantTurns()%len(roster)]
	return Decision[string]{Kind: KindNextSpeaker, Value: next.Name, Reason: "next in rotation"}, nil
}

func (m *RoundRobinManager) ShouldTerminate(ctx context.Context, _ *chat.Transcript, invocations int) (Decision[bool], error) {
	if err := ctx.Err(); err != nil {
		return Decision[bool]{Kind: KindShouldTerminate}, canceled(ctx, "should terminate")
	}
	if invocations >= m.cfg.MaxInvocations {
		return Decision[bool]{Kind: KindShouldTerminate, Value: true, Reason: ReasonCeilingReached}, nil
	}
	return Decision[bool]{Kind: KindShouldTerminate, Value: false, Reason: "rotation continues"}, nil
}

func (m *RoundRobinManager) ShouldRequestUserInput(context.Context, *chat.Transcript) (Decision[bool], error) {
	return Decision[bool]{Kind: KindRequestUserInput, Value: false, Reason: ReasonNoUserInput}, nil
}

// FilterResults joins every contribution made after the user's question, one per line.
func (m *RoundRobinManager) FilterResults(_ context.Context, transcript *chat.Transcript) (Decision[string], error) {
	turns := transcript.SinceLastUser()
	if len(turns) == 0 {
		return Decision[string]{Kind: KindFilteredResult, Value: NoAnswer, Reason: "nobody answered", Fallback: true}, nil
	}
	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		lines = append(lines, turn.String())
	}
	return Decision[string]{Kind: KindFilteredResult, Value: strings.Join(lines, "\n"), Reason: "joined contributions"}, nil
}
