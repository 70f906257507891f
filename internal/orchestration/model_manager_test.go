package orchestration

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zhouzirui/agora/backend/internal/model/chat"
	"github.com/zhouzirui/agora/backend/internal/model/participant"
	"github.com/zhouzirui/agora/backend/internal/orchestration/orchestrationtest"
	"github.com/zhouzirui/agora/backend/internal/service/ai"
)

const einstein, feynman = "Albert Einstein", "Richard Feynman"

func testRoster() []participant.Participant {
	seed := participant.Seed()
	return []participant.Participant{seed[0], seed[4]}
}

func newTestManager(gw ai.Gateway) *ModelManager {
	return NewModelManager("What is light?", gw, DefaultConfig(), nil)
}

func TestSelectNextSpeakerUsesModelChoice(t *testing.T) {
	gw := orchestrationtest.NewGateway().
		On(ai.PurposeSelection, orchestrationtest.Text(`{"value": "Richard Feynman", "reason": "clear explainer"}`))
	m := newTestManager(gw)

	decision, err := m.SelectNextSpeaker(context.Background(), chat.NewTranscript("What is light?"), testRoster())
	require.NoError(t, err)
	assert.Equal(t, KindNextSpeaker, decision.Kind)
	assert.Equal(t, feynman, decision.Value)
	assert.Equal(t, "clear explainer", decision.Reason)
	assert.False(t, decision.Fallback)

	calls := gw.Calls(ai.PurposeSelection)
	require.Len(t, calls, 1)
	assert.Equal(t, ai.DirectiveLast, calls[0].Placement)
	assert.Equal(t, DefaultDecisionMaxTokens, calls[0].MaxTokens)
	assert.Contains(t, calls[0].Directive, "What is light?")
	assert.Contains(t, calls[0].Directive, "- Albert Einstein: ")
	assert.Len(t, calls[0].History, 1)
}

func TestSelectNextSpeakerFallback(t *testing.T) {
	t.Run("first roster member when nobody spoke", func(t *testing.T) {
		gw := orchestrationtest.NewGateway().On(ai.PurposeSelection, orchestrationtest.Text("Galileo"))
		decision, err := newTestManager(gw).SelectNextSpeaker(context.Background(), chat.NewTranscript("q"), testRoster())
		require.NoError(t, err)
		assert.Equal(t, einstein, decision.Value)
		assert.Equal(t, ReasonSelectionFallback, decision.Reason)
		assert.True(t, decision.Fallback)
	})

	t.Run("most recent speaker", func(t *testing.T) {
		transcript := chat.NewTranscript("q")
		transcript.Append(chat.Turn{Role: chat.RoleParticipant, Name: feynman, Content: "Photons."})
		gw := orchestrationtest.NewGateway().On(ai.PurposeSelection, orchestrationtest.Text(""))

		decision, err := newTestManager(gw).SelectNextSpeaker(context.Background(), transcript, testRoster())
		require.NoError(t, err)
		assert.Equal(t, feynman, decision.Value)
		assert.True(t, decision.Fallback)
	})
}

func TestSelectNextSpeakerGatewayFailure(t *testing.T) {
	gw := orchestrationtest.NewGateway().On(ai.PurposeSelection, orchestrationtest.Fail(errors.New("503")))
	_, err := newTestManager(gw).SelectNextSpeaker(context.Background(), chat.NewTranscript("q"), testRoster())
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.NotErrorIs(t, err, ErrCanceled)
}

func TestSelectNextSpeakerCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gw := orchestrationtest.NewGateway().Default(ai.PurposeSelection, orchestrationtest.Text(einstein))

	_, err := newTestManager(gw).SelectNextSpeaker(ctx, chat.NewTranscript("q"), testRoster())
	assert.ErrorIs(t, err, ErrCanceled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSelectNextSpeakerEmptyRoster(t *testing.T) {
	gw := orchestrationtest.NewGateway()
	_, err := newTestManager(gw).SelectNextSpeaker(context.Background(), chat.NewTranscript("q"), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, gw.Calls(""))
}

func TestSelectNextSpeakerAlwaysInRoster(t *testing.T) {
	roster := testRoster()
	names := map[string]bool{einstein: true, feynman: true}

	rapid.Check(t, func(t *rapid.T) {
		reply := rapid.OneOf(
			rapid.String(),
			rapid.SampledFrom([]string{einstein, feynman, `{"value":"Richard Feynman"}`, `{"value": 42}`, "{}", "null"}),
		).Draw(t, "reply")
		spoke := rapid.Bool().Draw(t, "spoke")

		transcript := chat.NewTranscript("What is light?")
		if spoke {
			transcript.Append(chat.Turn{Role: chat.RoleParticipant, Name: feynman, Content: "Waves."})
		}
		gw := orchestrationtest.NewGateway().Default(ai.PurposeSelection, orchestrationtest.Text(reply))

		decision, err := newTestManager(gw).SelectNextSpeaker(context.Background(), transcript, roster)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !names[decision.Value] {
			t.Fatalf("selected %q which is not in the roster", decision.Value)
		}
	})
}

func TestShouldTerminateAtCeilingSkipsModel(t *testing.T) {
	gw := orchestrationtest.NewGateway()
	decision, err := newTestManager(gw).ShouldTerminate(context.Background(), chat.NewTranscript("q"), DefaultMaxInvocations)
	require.NoError(t, err)
	assert.True(t, decision.Value)
	assert.Equal(t, ReasonCeilingReached, decision.Reason)
	assert.Empty(t, gw.Calls(ai.PurposeTermination))
}

func TestShouldTerminate(t *testing.T) {
	tests := []struct {
		name         string
		reply        orchestrationtest.Reply
		want         bool
		wantFallback bool
	}{
		{name: "continue", reply: orchestrationtest.Text(`{"value": false, "reason": "still open"}`), want: false},
		{name: "stop", reply: orchestrationtest.Text(`{"value": true, "reason": "settled"}`), want: true},
		{name: "bare", reply: orchestrationtest.Text("false"), want: false},
		{name: "unparsable", reply: orchestrationtest.Text("let them talk"), want: true, wantFallback: true},
		{name: "gateway failure", reply: orchestrationtest.Fail(errors.New("timeout")), want: true, wantFallback: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := orchestrationtest.NewGateway().On(ai.PurposeTermination, tt.reply)
			decision, err := newTestManager(gw).ShouldTerminate(context.Background(), chat.NewTranscript("q"), 1)
			require.NoError(t, err)
			assert.Equal(t, KindShouldTerminate, decision.Kind)
			assert.Equal(t, tt.want, decision.Value)
			assert.Equal(t, tt.wantFallback, decision.Fallback)
			if tt.wantFallback {
				assert.Equal(t, ReasonTerminationFallback, decision.Reason)
			}
		})
	}
}

func TestShouldTerminateCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gw := orchestrationtest.NewGateway().Default(ai.PurposeTermination, orchestrationtest.Text("false"))

	_, err := newTestManager(gw).ShouldTerminate(ctx, chat.NewTranscript("q"), 1)
	assert.ErrorIs(t, err, ErrCanceled)
}

func TestShouldRequestUserInput(t *testing.T) {
	decision, err := newTestManager(orchestrationtest.NewGateway()).ShouldRequestUserInput(context.Background(), chat.NewTranscript("q"))
	require.NoError(t, err)
	assert.False(t, decision.Value)
	assert.Equal(t, ReasonNoUserInput, decision.Reason)
}

func TestFilterResults(t *testing.T) {
	discussed := func() *chat.Transcript {
		transcript := chat.NewTranscript("What is light?")
		transcript.Append(chat.Turn{Role: chat.RoleParticipant, Name: einstein, Content: "Quanta of energy."})
		transcript.Append(chat.Turn{Role: chat.RoleParticipant, Name: feynman, Content: "Waves and particles."})
		return transcript
	}

	t.Run("model summary", func(t *testing.T) {
		gw := orchestrationtest.NewGateway().On(ai.PurposeFilter, orchestrationtest.Text("Light is..."))
		decision, err := newTestManager(gw).FilterResults(context.Background(), discussed())
		require.NoError(t, err)
		assert.Equal(t, "Light is...", decision.Value)
		assert.False(t, decision.Fallback)
	})

	t.Run("envelope summary", func(t *testing.T) {
		gw := orchestrationtest.NewGateway().On(ai.PurposeFilter, orchestrationtest.Text(`{"value": "Light is both.", "reason": "consensus"}`))
		decision, err := newTestManager(gw).FilterResults(context.Background(), discussed())
		require.NoError(t, err)
		assert.Equal(t, "Light is both.", decision.Value)
		assert.Equal(t, "consensus", decision.Reason)
	})

	t.Run("empty reply falls back to last contribution", func(t *testing.T) {
		gw := orchestrationtest.NewGateway().On(ai.PurposeFilter, orchestrationtest.Text("  "))
		decision, err := newTestManager(gw).FilterResults(context.Background(), discussed())
		require.NoError(t, err)
		assert.Equal(t, "Richard Feynman: Waves and particles.", decision.Value)
		assert.True(t, decision.Fallback)
	})

	t.Run("truncated envelope falls back to last contribution", func(t *testing.T) {
		cut := `{"value": "Light is both a wave and a particle, as Einstein and Feyn`
		gw := orchestrationtest.NewGateway().On(ai.PurposeFilter, orchestrationtest.Text(cut))
		decision, err := newTestManager(gw).FilterResults(context.Background(), discussed())
		require.NoError(t, err)
		assert.Equal(t, "Richard Feynman: Waves and particles.", decision.Value)
		assert.Equal(t, ReasonFilterFallback, decision.Reason)
		assert.True(t, decision.Fallback)
	})

	t.Run("nobody spoke", func(t *testing.T) {
		gw := orchestrationtest.NewGateway().On(ai.PurposeFilter, orchestrationtest.Text(""))
		decision, err := newTestManager(gw).FilterResults(context.Background(), chat.NewTranscript("q"))
		require.NoError(t, err)
		assert.Equal(t, NoAnswer, decision.Value)
	})

	t.Run("gateway failure is not hidden", func(t *testing.T) {
		gw := orchestrationtest.NewGateway().On(ai.PurposeFilter, orchestrationtest.Fail(errors.New("boom")))
		_, err := newTestManager(gw).FilterResults(context.Background(), discussed())
		assert.ErrorIs(t, err, ErrGatewayUnavailable)
	})
}

func TestRoundRobinManager(t *testing.T) {
	ctx := context.Background()
	m := NewRoundRobinManager(Config{MaxInvocations: 2})
	roster := testRoster()
	transcript := chat.NewTranscript("q")

	first, err := m.SelectNextSpeaker(ctx, transcript, roster)
	require.NoError(t, err)
	assert.Equal(t, einstein, first.Value)
	transcript.Append(chat.Turn{Role: chat.RoleParticipant, Name: first.Value, Content: "one"})

	second, err := m.SelectNextSpeaker(ctx, transcript, roster)
	require.NoError(t, err)
	assert.Equal(t, feynman, second.Value)

	stop, err := m.ShouldTerminate(ctx, transcript, 1)
	require.NoError(t, err)
	assert.False(t, stop.Value)
	stop, err = m.ShouldTerminate(ctx, transcript, 2)
	require.NoError(t, err)
	assert.True(t, stop.Value)

	answer, err := m.FilterResults(ctx, transcript)
	require.NoError(t, err)
	assert.Equal(t, "Albert Einstein: one", answer.Value)

	empty, err := m.FilterResults(ctx, chat.NewTranscript("q"))
	require.NoError(t, err)
	assert.Equal(t, NoAnswer, empty.Value)
}
