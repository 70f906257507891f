// Package orchestrationtest provides a scripted completion gateway for tests.
package orchestrationtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/agora/backend/internal/service/ai"
)

// Reply is one scripted gateway answer.
type Reply struct {
	Text string
	Err  error
}

// Text scripts a successful reply.
func Text(s string) Reply { return Reply{Text: s} }

// Fail scripts a failed call.
func Fail(err error) Reply { return Reply{Err: err} }

// Gateway replays scripted replies per purpose. Once a purpose's queue is empty its default is
// used; a purpose with neither fails the call.
type Gateway struct {
	mu       sync.Mutex
	queues   map[ai.Purpose][]Reply
	defaults map[ai.Purpose]Reply
	calls    []ai.Request
}

func NewGateway() *Gateway {
	return &Gateway{
		queues:   make(map[ai.Purpose][]Reply),
		defaults: make(map[ai.Purpose]Reply),
	}
}

// On queues replies for purpose.
func (g *Gateway) On(purpose ai.Purpose, replies ...Reply) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queues[purpose] = append(g.queues[purpose], replies...)
	return g
}

// Default sets the reply used after the queue for purpose runs dry.
func (g *Gateway) Default(purpose ai.Purpose, reply Reply) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.defaults[purpose] = reply
	return g
}

func (g *Gateway) Complete(ctx context.Context, req ai.Request) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	reply, ok := g.next(req.Purpose)
	g.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("no scripted reply for %s", req.Purpose)
	}
	return reply.Text, reply.Err
}

func (g *Gateway) next(purpose ai.Purpose) (Reply, bool) {
	if queue := g.queues[purpose]; len(queue) > 0 {
		g.queues[purpose] = queue[1:]
		return queue[0], true
	}
	reply, ok := g.defaults[purpose]
	return reply, ok
}

// Calls returns the requests received for purpose, or all requests when purpose is empty.
func (g *Gateway) Calls(purpose ai.Purpose) []ai.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []ai.Request
	for _, req := range g.calls {
		if purpose == "" || req.Purpose == purpose {
			out = append(out, req)
		}
	}
	return out
}

// StreamingGateway also streams replies, one word per chunk.
type StreamingGateway struct {
	*Gateway
}

func NewStreamingGateway() *StreamingGateway {
	return &StreamingGateway{Gateway: NewGateway()}
}

func (g *StreamingGateway) Stream(ctx context.Context, req ai.Request) (*schema.StreamReader[*schema.Message], error) {
	text, err := g.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray(Chunks(text)), nil
}

// Chunks splits text into assistant message chunks that concatenate back to text.
func Chunks(text string) []*schema.Message {
	words := strings.SplitAfter(text, " ")
	chunks := make([]*schema.Message, 0, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		chunks = append(chunks, &schema.Message{Role: schema.Assistant, Content: w})
	}
	return chunks
}
