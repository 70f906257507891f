package orchestration

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/zhouzirui/agora/backend/internal/model/chat"
)

// Sink receives progress from a run as it happens.
type Sink interface {
	OnTurn(turn chat.Turn)
	OnStreamChunk(chunk string, isFinal bool)
}

// EventType tags collector events.
type EventType string

const (
	EventTurn  EventType = "turn"
	EventDelta EventType = "delta"
	EventFlush EventType = "flush"
)

// Event is what subscribers see.
type Event struct {
	Type  EventType  `json:"type"`
	Turn  *chat.Turn `json:"turn,omitempty"`
	Chunk string     `json:"chunk,omitempty"`
}

// Observer is invoked synchronously for every event. Panics are recovered.
type Observer func(Event)

// Collector keeps the ordered turn log of a run and the text of the reply being streamed.
type Collector struct {
	mu        sync.Mutex
	turns     []chat.Turn
	buffer    strings.Builder
	observers []Observer
	subs      map[int]chan Event
	nextSub   int
	closed    bool
	logger    *zap.Logger
}

// NewCollector 创建收集器
func NewCollector(logger *zap.Logger, observers ...Observer) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		observers: observers,
		subs:      make(map[int]chan Event),
		logger:    logger.With(zap.String("component", "collector")),
	}
}

// OnTurn appends turn to the log before notifying anyone.
func (c *Collector) OnTurn(turn chat.Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = append(c.turns, turn)
	c.emit(Event{Type: EventTurn, Turn: &turn})
}

// OnStreamChunk accumulates a reply fragment. A final chunk clears the buffer; repeated final
// chunks are no-ops.
func (c *Collector) OnStreamChunk(chunk string, isFinal bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if chunk != "" {
		c.buffer.WriteString(chunk)
		c.emit(Event{Type: EventDelta, Chunk: chunk})
	}
	if !isFinal || c.buffer.Len() == 0 {
		return
	}
	c.buffer.Reset()
	c.emit(Event{Type: EventFlush})
}

// Turns returns a snapshot of the turn log.
func (c *Collector) Turns() []chat.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.Turn(nil), c.turns...)
}

// Buffer returns the text streamed so far for the current reply.
func (c *Collector) Buffer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.String()
}

// Subscribe returns a channel of events and a cancel func. A subscriber that falls more than
// buffer events behind loses events instead of blocking the run.
func (c *Collector) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// Close ends every subscription. Further events are still logged but not delivered.
func (c *Collector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

// emit must be called with c.mu held.
func (c *Collector) emit(event Event) {
	for _, observer := range c.observers {
		c.notify(observer, event)
	}
	for id, ch := range c.subs {
		select {
		case ch <- event:
		default:
			c.logger.Warn("subscriber is full, dropping event",
				zap.Int("subscriber", id),
				zap.String("type", string(event.Type)),
			)
		}
	}
}

func (c *Collector) notify(observer Observer, event Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("collector observer failed",
				zap.String("type", string(event.Type)),
				zap.Error(fmt.Errorf("panic: %v", r)),
			)
		}
	}()
	observer(event)
}
