package orchestration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/agora/backend/internal/model/participant"
	"github.com/zhouzirui/agora/backend/internal/orchestration/orchestrationtest"
	"github.com/zhouzirui/agora/backend/internal/service/ai"
)

func newTestOrchestrator(t *testing.T, gw ai.Gateway) *Orchestrator {
	t.Helper()
	rt := newTestRuntime(t, gw, DefaultConfig(), nil)
	o, err := NewOrchestrator(rt, participant.MustRegistry(testRoster()), nil)
	require.NoError(t, err)
	return o
}

func TestAskAgents(t *testing.T) {
	gw := orchestrationtest.NewGateway().
		Default(ai.PurposeSelection, orchestrationtest.Text(feynman)).
		Default(ai.PurposeParticipant, orchestrationtest.Text("Photons all the way down.")).
		Default(ai.PurposeTermination, orchestrationtest.Text("true")).
		Default(ai.PurposeFilter, orchestrationtest.Text("Light is made of photons."))
	o := newTestOrchestrator(t, gw)

	answer, err := o.AskAgents(context.Background(), "What is light?")
	require.NoError(t, err)
	assert.Equal(t, "Light is made of photons.", answer)
	assert.Equal(t, DefaultMaxQuestionLength, o.MaxQuestionLength())
	assert.Len(t, o.Roster(), 2)
}

func TestAskWithObserverUsesCallerCollector(t *testing.T) {
	gw := orchestrationtest.NewGateway().
		Default(ai.PurposeSelection, orchestrationtest.Text(einstein)).
		Default(ai.PurposeParticipant, orchestrationtest.Text("Relatively speaking, yes.")).
		Default(ai.PurposeTermination, orchestrationtest.Text("true")).
		Default(ai.PurposeFilter, orchestrationtest.Text("Yes."))
	o := newTestOrchestrator(t, gw)
	collector := NewCollector(nil)

	result, err := o.AskWithObserver(context.Background(), "Is time relative?", collector)
	require.NoError(t, err)
	assert.Equal(t, result.Transcript, collector.Turns())
}

func TestAskAgentsPropagatesInvalidInput(t *testing.T) {
	o := newTestOrchestrator(t, orchestrationtest.NewGateway())
	_, err := o.AskAgents(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
