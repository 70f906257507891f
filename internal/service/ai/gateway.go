// Package ai is the boundary between the orchestration core and the language model.
package ai

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/agora/backend/internal/model/chat"
)

// Purpose labels a completion call so gateways, fakes and metrics can tell decision calls apart.
type Purpose string

const (
	PurposeParticipant Purpose = "participant"
	PurposeSelection   Purpose = "selection"
	PurposeTermination Purpose = "termination"
	PurposeFilter      Purpose = "filter"
)

// Placement controls where the directive goes relative to the history.
type Placement int

const (
	// DirectiveFirst is used for persona replies: instructions, then the discussion so far.
	DirectiveFirst Placement = iota
	// DirectiveLast is used for moderator decisions: the discussion, then the question to answer about it.
	DirectiveLast
)

// Request is a single completion call.
type Request struct {
	Purpose   Purpose
	Directive string
	Placement Placement
	History   []chat.Turn
	MaxTokens int
}

// Gateway asks the model for a response given a history and a directive.
// Implementations must be safe for concurrent use by independent runs.
type Gateway interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// StreamingGateway is implemented by gateways that can deliver a reply incrementally.
type StreamingGateway interface {
	Gateway
	Stream(ctx context.Context, req Request) (*schema.StreamReader[*schema.Message], error)
}

// CallObserver receives the outcome of every gateway call.
type CallObserver interface {
	ObserveGatewayCall(purpose string, elapsed time.Duration, err error)
}
