package orchestration

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/agora/backend/internal/model/participant"
)

const replyFormat = `Reply with a single JSON object and nothing else, value first: {"value": %s, "reason": "<at most five words>"}`

func selectionDirective(topic string, roster []participant.Participant) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the mediator guiding a discussion on the topic of '%s'.\n", topic)
	b.WriteString("You need to select the next participant to speak.\n")
	b.WriteString("Here are the names and descriptions of the participants:\n")
	b.WriteString(participant.FormatList(roster))
	b.WriteString("\nDo not pick the participant who spoke last unless nobody else can add anything.\n")
	fmt.Fprintf(&b, replyFormat, `"<exact participant name>"`)
	return b.String()
}

func terminationDirective(topic string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the mediator guiding a discussion on the topic of '%s'.\n", topic)
	b.WriteString("You need to determine if the discussion has reached a conclusion.\n")
	b.WriteString("Set value to true to end the discussion, otherwise set it to false.\n")
	fmt.Fprintf(&b, replyFormat, "true|false")
	return b.String()
}

func filterDirective(topic string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the mediator guiding a discussion on the topic of '%s'.\n", topic)
	b.WriteString("You have just concluded the discussion.\n")
	b.WriteString("Summarize the discussion and provide a short closing statement, no more than 100 words.\n")
	fmt.Fprintf(&b, replyFormat, `"<closing statement>"`)
	return b.String()
}

// participantDirective frames a persona for its turn in the group.
func participantDirective(p participant.Participant, topic string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(p.Directive))
	fmt.Fprintf(&b, "\n\nYou are %s, taking part in a group discussion with other experts about: '%s'.\n", p.Name, topic)
	b.WriteString("Speak only as yourself and do not write lines for the other participants.\n")
	b.WriteString("Build on what has already been said instead of repeating it, and keep your contribution brief.")
	return b.String()
}
