package stream

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/agora/backend/internal/handler/conversation"
	"github.com/zhouzirui/agora/backend/internal/orchestration"
	chatService "github.com/zhouzirui/agora/backend/internal/service/chat"
	"github.com/zhouzirui/agora/backend/pkg/utils"
)

// subscriberBuffer bounds how far a slow client may lag before events are dropped.
const subscriberBuffer = 256

// Handler streams discussions as they happen, over Server-Sent Events or WebSocket.
type Handler struct {
	chatSvc          *chatService.Service
	maxMessageLength int
	logger           *zap.Logger
}

// New creates a new stream handler
func New(chatSvc *chatService.Service, maxMessageLength int, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		chatSvc:          chatSvc,
		maxMessageLength: maxMessageLength,
		logger:           logger.With(zap.String("component", "stream_handler")),
	}
}

// RegisterRoutes 注册流式路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/conversations/{id}/stream", h.handleSSE)
	r.Get("/conversations/{id}/ws", h.handleWebSocket)
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event          string `json:"event"`
	ConversationID string `json:"conversationId,omitempty"`
	Speaker        string `json:"speaker,omitempty"`
	Sequence       int    `json:"sequence,omitempty"`
	Content        string `json:"content,omitempty"`
	Finished       bool   `json:"finished,omitempty"`
	Error          string `json:"error,omitempty"`
}

func (h *Handler) handleSSE(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	message, err := conversation.ValidateMessage(r.URL.Query().Get("message"), h.maxMessageLength)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.chatSvc.GetConversation(r.Context(), id); err != nil {
		utils.RespondError(w, http.StatusNotFound, "not found")
		return
	}

	utils.SetupSSEHeaders(w)
	utils.SendSSEEvent(w, flusher, "start", StreamResponse{Event: "start", ConversationID: id})

	err = h.HandleStreamRequest(r.Context(), id, message, func(resp StreamResponse) {
		utils.SendSSEEvent(w, flusher, resp.Event, resp)
	})
	if err != nil {
		h.logger.Warn("stream failed", zap.String("conversation_id", id), zap.Error(err))
	}
}

// HandleStreamRequest runs one discussion and reports every step to send, finishing with either
// a message and end pair or an error. send is only called from the calling goroutine.
func (h *Handler) HandleStreamRequest(ctx context.Context, conversationID, message string, send func(StreamResponse)) error {
	collector := orchestration.NewCollector(h.logger)
	events, unsubscribe := collector.Subscribe(subscriberBuffer)
	defer unsubscribe()

	type outcome struct {
		exchange chatService.Exchange
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		exchange, err := h.chatSvc.Ask(ctx, conversationID, message, collector)
		collector.Close()
		done <- outcome{exchange: exchange, err: err}
	}()

	for event := range events {
		if resp, ok := toResponse(conversationID, event); ok {
			send(resp)
		}
	}

	result := <-done
	if result.err != nil {
		send(StreamResponse{Event: "error", ConversationID: conversationID, Error: publicError(result.err)})
		return result.err
	}

	send(StreamResponse{Event: "message", ConversationID: conversationID, Content: result.exchange.Reply.Content})
	send(StreamResponse{Event: "end", ConversationID: conversationID, Finished: true})
	return nil
}

func toResponse(conversationID string, event orchestration.Event) (StreamResponse, bool) {
	switch event.Type {
	case orchestration.EventTurn:
		if event.Turn == nil {
			return StreamResponse{}, false
		}
		return StreamResponse{
			Event:          "turn",
			ConversationID: conversationID,
			Speaker:        event.Turn.Author(),
			Sequence:       event.Turn.Sequence,
			Content:        event.Turn.Content,
		}, true
	case orchestration.EventDelta:
		return StreamResponse{Event: "delta", ConversationID: conversationID, Content: event.Chunk}, true
	default:
		return StreamResponse{}, false
	}
}

func publicError(err error) string {
	switch {
	case errors.Is(err, orchestration.ErrCanceled):
		return "canceled"
	case errors.Is(err, orchestration.ErrInvalidInput):
		return "invalid message"
	default:
		return "not found"
	}
}
