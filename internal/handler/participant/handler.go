package participant

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/agora/backend/internal/model/participant"
	"github.com/zhouzirui/agora/backend/pkg/utils"
)

// Handler 参与者名单的HTTP处理器
type Handler struct {
	participants participant.Store
}

// New 创建参与者处理器
func New(participants participant.Store) *Handler {
	return &Handler{participants: participants}
}

// RegisterRoutes 注册参与者相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/participants", h.handleListParticipants)
}

// handleListParticipants 列出所有参与者; directives stay server side.
func (h *Handler) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.participants.List())
}
