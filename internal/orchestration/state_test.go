package orchestration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StateAwaitingSelection, StateParticipantSpeaking))
	assert.True(t, CanTransition(StateParticipantSpeaking, StateAwaitingTerminationCheck))
	assert.True(t, CanTransition(StateAwaitingTerminationCheck, StateAwaitingSelection))
	assert.True(t, CanTransition(StateAwaitingTerminationCheck, StateFinalizing))
	assert.True(t, CanTransition(StateParticipantSpeaking, StateTerminal))

	// the termination check can never be skipped
	assert.False(t, CanTransition(StateParticipantSpeaking, StateAwaitingSelection))
	assert.False(t, CanTransition(StateParticipantSpeaking, StateFinalizing))
	assert.False(t, CanTransition(StateAwaitingSelection, StateFinalizing))
	assert.False(t, CanTransition(StateTerminal, StateAwaitingSelection))
	assert.False(t, CanTransition(StateTerminal, StateTerminal))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting_termination_check", StateAwaitingTerminationCheck.String())
	assert.Equal(t, "state(42)", State(42).String())
}
