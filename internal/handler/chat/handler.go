package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/persona-lab/backend/internal/handler/httperr"
	"github.com/zhouzirui/persona-lab/backend/internal/model/chat"
	"github.com/zhouzirui/persona-lab/backend/internal/model/persona"
	chatService "github.com/zhouzirui/persona-lab/backend/internal/service/chat"
	"github.com/zhouzirui/persona-lab/backend/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
	timeout time.Duration
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, timeout time.Duration) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		timeout: timeout,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/sessions", h.handleCreateSession)
	r.Get("/chat/sessions/{sessionID}", h.handleGetSession)
	r.Delete("/chat/sessions/{sessionID}", h.handleDeleteSession)
	r.Post("/chat/sessions/{sessionID}/messages", h.handleSendMessage)
}

type sessionResponse struct {
	Session chat.SessionInfo `json:"session"`
	Persona persona.Persona  `json:"persona"`
	History []chat.Message   `json:"history"`
}

// handleCreateSession 创建会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PersonaID string `json:"personaId"`
		Model     string `json:"model"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.PersonaID == "" {
		utils.RespondError(w, http.StatusBadRequest, "personaId is required")
		return
	}

	info, session, err := h.chatSvc.CreateSession(r.Context(), payload.PersonaID, payload.Model)
	if err != nil {
		httperr.Respond(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, describe(info, session))
}

// handleGetSession 返回会话与历史
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	info, session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, describe(info, session))
}

// handleDeleteSession 结束会话
func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		httperr.Respond(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSendMessage 发送消息并等待完整回复
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	_, session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		httperr.Respond(w, err)
		return
	}

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	reply, err := session.Turn(ctx, payload.Message)
	if err != nil {
		httperr.Respond(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func describe(info chat.SessionInfo, session *chatService.Session) sessionResponse {
	return sessionResponse{
		Session: info,
		Persona: session.Persona(),
		History: session.History(),
	}
}
