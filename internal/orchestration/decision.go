package orchestration

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/zhouzirui/agora/backend/internal/model/participant"
)

// Kind tags what a Decision answers.
type Kind string

const (
	KindNextSpeaker      Kind = "next_speaker"
	KindShouldTerminate  Kind = "should_terminate"
	KindRequestUserInput Kind = "request_user_input"
	KindFilteredResult   Kind = "filtered_result"
)

// Justifications attached to decisions that did not come from the model.
const (
	ReasonSelectionFallback   = "error occurred, selecting first available agent"
	ReasonTerminationFallback = "error occurred, terminating discussion"
	ReasonCeilingReached      = "maximum invocation count reached"
	ReasonNoUserInput         = "the group chat manager does not request user input"
	ReasonFilterFallback      = "no closing statement available, returning the last contribution"
)

// NoAnswer is returned by FilterResults when nobody but the user has spoken.
const NoAnswer = "No Answer"

// Decision is the result of a Turn Manager query. Reason is informational only.
type Decision[T any] struct {
	Kind     Kind   `json:"kind"`
	Value    T      `json:"value"`
	Reason   string `json:"reason,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
}

// truncatedValue recovers the value of an envelope cut off by the completion budget.
var truncatedValue = regexp.MustCompile(`"value"\s*:\s*("(?:[^"\\]|\\.)*"|true|false)`)

type envelope struct {
	Value  json.RawMessage `json:"value"`
	Reason string          `json:"reason"`
}

// decodeReply extracts the {"value": ..., "reason": ...} object from a model reply. Plain text is
// taken as a bare value; a reply that opens an object but yields no value is unparsable.
func decodeReply(text string) (envelope, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return envelope{}, fmt.Errorf("%w: empty reply", ErrUnparsableDecision)
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start != -1 && end > start {
		var env envelope
		if err := json.Unmarshal([]byte(trimmed[start:end+1]), &env); err == nil && len(env.Value) > 0 && string(env.Value) != "null" {
			env.Reason = strings.TrimSpace(env.Reason)
			return env, nil
		}
	}
	if m := truncatedValue.FindStringSubmatch(trimmed); m != nil {
		return envelope{Value: json.RawMessage(m[1])}, nil
	}
	if opensObject(trimmed) {
		return envelope{}, fmt.Errorf("%w: incomplete object %.40q", ErrUnparsableDecision, trimmed)
	}

	bare, err := json.Marshal(trimmed)
	if err != nil {
		return envelope{}, fmt.Errorf("%w: %v", ErrUnparsableDecision, err)
	}
	return envelope{Value: bare}, nil
}

// opensObject reports whether s starts a JSON object, optionally inside a code fence.
func opensObject(s string) bool {
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	return strings.HasPrefix(strings.TrimSpace(s), "{")
}

func (e envelope) text() (string, error) {
	var s string
	if err := json.Unmarshal(e.Value, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	raw := strings.TrimSpace(string(e.Value))
	if raw == "" {
		return "", fmt.Errorf("%w: empty value", ErrUnparsableDecision)
	}
	return raw, nil
}

func (e envelope) boolean() (bool, error) {
	var b bool
	if err := json.Unmarshal(e.Value, &b); err == nil {
		return b, nil
	}
	s, err := e.text()
	if err != nil {
		return false, err
	}
	parsed, err := strconv.ParseBool(trimDecoration(s))
	if err != nil {
		return false, fmt.Errorf("%w: %q is not a boolean", ErrUnparsableDecision, s)
	}
	return parsed, nil
}

// resolveSpeaker matches a selection against the roster by name, ignoring case and the decoration
// models add around names.
func resolveSpeaker(value string, roster []participant.Participant) (participant.Participant, error) {
	candidate := trimDecoration(value)
	if candidate == "" {
		return participant.Participant{}, fmt.Errorf("%w: empty name", ErrUnparsableDecision)
	}
	for _, p := range roster {
		if strings.EqualFold(trimDecoration(p.Name), candidate) {
			return p, nil
		}
	}
	return participant.Participant{}, fmt.Errorf("%w: %q", ErrInvalidRosterReference, candidate)
}

func trimDecoration(s string) string {
	return strings.Trim(s, " \t\r\n\"'`*.!")
}
