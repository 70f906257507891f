package orchestration

import "fmt"

// State is a stage of the discussion loop.
type State int

const (
	StateAwaitingSelection State = iota
	StateParticipantSpeaking
	StateAwaitingTerminationCheck
	StateFinalizing
	StateTerminal
)

var stateNames = map[State]string{
	StateAwaitingSelection:        "awaiting_selection",
	StateParticipantSpeaking:      "participant_speaking",
	StateAwaitingTerminationCheck: "awaiting_termination_check",
	StateFinalizing:               "finalizing",
	StateTerminal:                 "terminal",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// every state may also fail straight to StateTerminal
var transitions = map[State][]State{
	StateAwaitingSelection:        {StateParticipantSpeaking},
	StateParticipantSpeaking:      {StateAwaitingTerminationCheck},
	StateAwaitingTerminationCheck: {StateAwaitingSelection, StateFinalizing},
	StateFinalizing:               {StateTerminal},
}

// CanTransition reports whether the loop may move from one state to another.
func CanTransition(from, to State) bool {
	if from == StateTerminal {
		return false
	}
	if to == StateTerminal {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
