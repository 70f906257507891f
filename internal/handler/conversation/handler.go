package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/agora/backend/internal/model/chat"
	chatService "github.com/zhouzirui/agora/backend/internal/service/chat"
	"github.com/zhouzirui/agora/backend/pkg/utils"
)

// Handler 会话服务的HTTP处理器
type Handler struct {
	chatSvc          *chatService.Service
	maxMessageLength int
	logger           *zap.Logger
}

// New 创建会话处理器
func New(chatSvc *chatService.Service, maxMessageLength int, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		chatSvc:          chatSvc,
		maxMessageLength: maxMessageLength,
		logger:           logger.With(zap.String("component", "conversation_handler")),
	}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/conversations", h.handleStartConversation)
	r.Get("/conversations", h.handleListConversations)
	r.Get("/conversations/{id}", h.handleGetConversation)
}

// RegisterAskRoutes 注册会触发讨论的路由, kept apart so they can be rate limited.
func (h *Handler) RegisterAskRoutes(r chi.Router) {
	r.Post("/conversations/{id}/ask", h.handleAsk)
}

type startResponse struct {
	ConversationID string `json:"conversationId"`
}

type askRequest struct {
	UserMessage string `json:"userMessage"`
}

type askResponse struct {
	Reply     string `json:"reply"`
	AgentName string `json:"agentName"`
}

// handleStartConversation 创建会话
func (h *Handler) handleStartConversation(w http.ResponseWriter, r *http.Request) {
	conversation, err := h.chatSvc.StartConversation(r.Context(), "")
	if err != nil {
		h.logger.Error("failed to start conversation", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to start conversation")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, startResponse{ConversationID: conversation.ID})
}

func (h *Handler) handleListConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.chatSvc.ListConversations(r.Context())
	if err != nil {
		h.logger.Error("failed to list conversations", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	utils.RespondJSON(w, http.StatusOK, conversations)
}

func (h *Handler) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conversation, err := h.chatSvc.GetConversation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if !errors.Is(err, chatService.ErrConversationNotFound) {
			h.logger.Error("failed to load conversation", zap.Error(err))
		}
		utils.RespondError(w, http.StatusNotFound, "not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, conversation)
}

// handleAsk runs a discussion. Every failure after validation is reported as not found so
// upstream details never reach the client.
func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var payload askRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	message, err := ValidateMessage(payload.UserMessage, h.maxMessageLength)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	exchange, err := h.chatSvc.Ask(r.Context(), id, message, nil)
	if err != nil {
		h.logger.Warn("ask failed", zap.String("conversation_id", id), zap.Error(err))
		utils.RespondError(w, http.StatusNotFound, "not found")
		return
	}

	utils.RespondJSON(w, http.StatusOK, askResponse{Reply: exchange.Reply.Content, AgentName: chat.SenderAgent})
}

// ValidateMessage trims message and enforces the length limit in characters.
func ValidateMessage(message string, maxLength int) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("userMessage is required")
	}
	if maxLength > 0 && utf8.RuneCountInString(message) > maxLength {
		return "", fmt.Errorf("userMessage must be at most %d characters", maxLength)
	}
	return message, nil
}
