package ai

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"
)

// Instrument wraps gw so every call is reported to observer. Streaming support is preserved.
func Instrument(gw Gateway, observer CallObserver) Gateway {
	if observer == nil {
		return gw
	}
	base := instrumented{next: gw, observer: observer}
	if sg, ok := gw.(StreamingGateway); ok {
		return &instrumentedStreaming{instrumented: base, stream: sg}
	}
	return &base
}

type instrumented struct {
	next     Gateway
	observer CallObserver
}

func (g *instrumented) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	text, err := g.next.Complete(ctx, req)
	g.observer.ObserveGatewayCall(string(req.Purpose), time.Since(start), err)
	return text, err
}

type instrumentedStreaming struct {
	instrumented
	stream StreamingGateway
}

// Stream reports time to first byte; the body is consumed by the caller.
func (g *instrumentedStreaming) Stream(ctx context.Context, req Request) (*schema.StreamReader[*schema.Message], error) {
	start := time.Now()
	reader, err := g.stream.Stream(ctx, req)
	g.observer.ObserveGatewayCall(string(req.Purpose), time.Since(start), err)
	return reader, err
}
