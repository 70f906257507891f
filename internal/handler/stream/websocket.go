package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/agora/backend/internal/handler/conversation"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// AskMessage 提问消息
type AskMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type           string      `json:"type"`
	ConversationID string      `json:"conversationId,omitempty"`
	Data           interface{} `json:"data,omitempty"`
	Timestamp      int64       `json:"timestamp"`
}

// wsWriter serializes frames; gorilla allows one concurrent writer.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) send(msg outgoingMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	msg.Timestamp = time.Now().Unix()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return w.conn.WriteJSON(msg)
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.chatSvc.GetConversation(r.Context(), id); err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	logger := h.logger.With(zap.String("conversation_id", id))
	logger.Info("websocket connected")

	// the server stops tracking a hijacked connection, so the read loop owns cancellation
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	go pingLoop(ctx, conn)

	writer := &wsWriter{conn: conn}
	_ = writer.send(outgoingMessage{Type: "connected", ConversationID: id})

	frames := make(chan inboundMessage, 1)
	go readFrames(conn, cancel, writer, id, frames, logger)

	for {
		select {
		case <-ctx.Done():
			logger.Info("websocket closed")
			return
		case msg := <-frames:
			switch msg.Type {
			case "ask":
				h.handleAsk(ctx, writer, id, msg.Data)
			default:
				_ = writer.send(outgoingMessage{Type: "error", ConversationID: id, Data: map[string]string{"message": "unsupported message type: " + msg.Type}})
			}
		}
	}
}

// readFrames keeps reading while a discussion runs so a closed connection cancels it. Frames that
// arrive while one is still queued are rejected.
func readFrames(conn *websocket.Conn, cancel context.CancelFunc, writer *wsWriter, id string, frames chan<- inboundMessage, logger *zap.Logger) {
	defer cancel()
	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		select {
		case frames <- msg:
		default:
			_ = writer.send(outgoingMessage{Type: "error", ConversationID: id, Data: map[string]string{"message": "a discussion is already in progress"}})
		}
	}
}

func (h *Handler) handleAsk(ctx context.Context, writer *wsWriter, id string, raw json.RawMessage) {
	var ask AskMessage
	if err := json.Unmarshal(raw, &ask); err != nil {
		_ = writer.send(outgoingMessage{Type: "error", ConversationID: id, Data: map[string]string{"message": "invalid ask payload"}})
		return
	}
	message, err := conversation.ValidateMessage(ask.Text, h.maxMessageLength)
	if err != nil {
		_ = writer.send(outgoingMessage{Type: "error", ConversationID: id, Data: map[string]string{"message": err.Error()}})
		return
	}

	_ = h.HandleStreamRequest(ctx, id, message, func(resp StreamResponse) {
		frame := outgoingMessage{Type: resp.Event, ConversationID: id, Data: resp}
		switch resp.Event {
		case "message":
			frame.Type = "answer"
		case "end":
			return
		}
		if err := writer.send(frame); err != nil {
			h.logger.Debug("websocket write failed", zap.Error(err))
		}
	})
}

// pingLoop 定期发送ping消息
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
