package chat

import "fmt"

// Role identifies who authored a turn.
type Role string

const (
	RoleUser        Role = "user"
	RoleParticipant Role = "participant"
	RoleModerator   Role = "moderator"
)

// Turn is one contribution to a discussion. Name carries the participant name for participant turns.
type Turn struct {
	Role     Role   `json:"role"`
	Name     string `json:"name,omitempty"`
	Content  string `json:"content"`
	Sequence int    `json:"sequence"`
}

// Author returns the display name of whoever produced the turn.
func (t Turn) Author() string {
	switch t.Role {
	case RoleParticipant:
		return t.Name
	case RoleModerator:
		return "Moderator"
	default:
		return "User"
	}
}

func (t Turn) String() string {
	return fmt.Sprintf("%s: %s", t.Author(), t.Content)
}

// Transcript is the ordered, append-only history of a single discussion run.
// It is owned by one run and is not safe for concurrent mutation.
type Transcript struct {
	turns []Turn
}

// NewTranscript starts a transcript with the user's question.
func NewTranscript(question string) *Transcript {
	t := &Transcript{turns: make([]Turn, 0, 8)}
	t.Append(Turn{Role: RoleUser, Content: question})
	return t
}

// Append stamps the next sequence number on turn and stores it.
func (t *Transcript) Append(turn Turn) Turn {
	turn.Sequence = len(t.turns) + 1
	t.turns = append(t.turns, turn)
	return turn
}

// Turns returns a copy of the recorded turns.
func (t *Transcript) Turns() []Turn {
	return append([]Turn(nil), t.turns...)
}

// Len returns the number of recorded turns.
func (t *Transcript) Len() int {
	return len(t.turns)
}

// Last returns the most recent turn.
func (t *Transcript) Last() (Turn, bool) {
	if len(t.turns) == 0 {
		return Turn{}, false
	}
	return t.turns[len(t.turns)-1], true
}

// LastSpeaker returns the name of the most recent participant turn.
func (t *Transcript) LastSpeaker() (string, bool) {
	for i := len(t.turns) - 1; i >= 0; i-- {
		if t.turns[i].Role == RoleParticipant {
			return t.turns[i].Name, true
		}
	}
	return "", false
}

// ParticipantTurns counts turns authored by participants.
func (t *Transcript) ParticipantTurns() int {
	count := 0
	for _, turn := range t.turns {
		if turn.Role == RoleParticipant {
			count++
		}
	}
	return count
}

// SinceLastUser returns the turns recorded after the latest user turn.
func (t *Transcript) SinceLastUser() []Turn {
	for i := len(t.turns) - 1; i >= 0; i-- {
		if t.turns[i].Role == RoleUser {
			return append([]Turn(nil), t.turns[i+1:]...)
		}
	}
	return nil
}
