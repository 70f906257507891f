package chat

import (
	"sort"
	"time"
)

// Sender values stored on persisted messages.
const (
	SenderUser  = "User"
	SenderAgent = "Agent"
)

// Conversation is the persisted record of a user's exchanges with the agent group.
type Conversation struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message persists one user question or one synthesized agent reply.
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SortMessages orders messages chronologically in place.
func (c *Conversation) SortMessages() {
	sort.SliceStable(c.Messages, func(i, j int) bool {
		return c.Messages[i].Timestamp.Before(c.Messages[j].Timestamp)
	})
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (c Conversation) Clone() Conversation {
	c.Messages = append([]Message(nil), c.Messages...)
	return c
}
