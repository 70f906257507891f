package orchestration

import (
	"context"

	"github.com/zhouzirui/agora/backend/internal/model/chat"
	"github.com/zhouzirui/agora/backend/internal/model/participant"
)

// Manager decides the shape of one discussion: who speaks, when to stop and what the answer is.
// A Manager belongs to a single run; the runtime creates a fresh one per question.
type Manager interface {
	SelectNextSpeaker(ctx context.Context, transcript *chat.Transcript, roster []participant.Participant) (Decision[string], error)
	// ShouldTerminate is consulted after every participant turn. invocations is the number of
	// participant turns taken so far in this run.
	ShouldTerminate(ctx context.Context, transcript *chat.Transcript, invocations int) (Decision[bool], error)
	ShouldRequestUserInput(ctx context.Context, transcript *chat.Transcript) (Decision[bool], error)
	FilterResults(ctx context.Context, transcript *chat.Transcript) (Decision[string], error)
}

// ManagerFactory builds the Manager for a run on the given topic.
type ManagerFactory func(topic string) Manager

// Config bounds a run.
type Config struct {
	// MaxInvocations is the hard ceiling on participant turns per run.
	MaxInvocations int
	// MaxQuestionLength is measured in characters.
	MaxQuestionLength int
	DecisionMaxTokens int
	// FilterMaxTokens of zero leaves the closing statement to the model default.
	FilterMaxTokens int
	// Streaming lets participant replies be streamed when the gateway supports it.
	Streaming bool
}

const (
	DefaultMaxInvocations    = 3
	DefaultMaxQuestionLength = 500
	DefaultDecisionMaxTokens = 15
)

// DefaultConfig returns the standard limits.
func DefaultConfig() Config {
	return Config{
		MaxInvocations:    DefaultMaxInvocations,
		MaxQuestionLength: DefaultMaxQuestionLength,
		DecisionMaxTokens: DefaultDecisionMaxTokens,
		Streaming:         true,
	}
}

func (c Config) normalized() Config {
	if c.MaxInvocations <= 0 {
		c.MaxInvocations = DefaultMaxInvocations
	}
	if c.MaxQuestionLength <= 0 {
		c.MaxQuestionLength = DefaultMaxQuestionLength
	}
	if c.DecisionMaxTokens <= 0 {
		c.DecisionMaxTokens = DefaultDecisionMaxTokens
	}
	if c.FilterMaxTokens < 0 {
		c.FilterMaxTokens = 0
	}
	return c
}

// fallbackSpeaker prefers the participant who spoke last, then the first roster member.
func fallbackSpeaker(transcript *chat.Transcript, roster []participant.Participant) (participant.Participant, bool) {
	if len(roster) == 0 {
		return participant.Participant{}, false
	}
	if name, ok := transcript.LastSpeaker(); ok {
		for _, p := range roster {
			if p.Name == name {
				return p, true
			}
		}
	}
	return roster[0], true
}

// lastContribution renders the most recent non-user turn, or NoAnswer.
func lastContribution(transcript *chat.Transcript) string {
	turns := transcript.Turns()
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role != chat.RoleUser && turns[i].Content != "" {
			return turns[i].String()
		}
	}
	return NoAnswer
}
