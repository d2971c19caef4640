package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/persona-lab/backend/internal/handler/httperr"
	"github.com/zhouzirui/persona-lab/backend/internal/model/chat"
	"github.com/zhouzirui/persona-lab/backend/internal/model/persona"
	generatorService "github.com/zhouzirui/persona-lab/backend/internal/service/generator"
	"github.com/zhouzirui/persona-lab/backend/pkg/utils"
)

// Handler persona生成会话的HTTP处理器
type Handler struct {
	svc     *generatorService.Service
	timeout time.Duration
}

// New 创建生成处理器。timeout 限制单次模型调用的时长，0 表示不限制。
func New(svc *generatorService.Service, timeout time.Duration) *Handler {
	return &Handler{svc: svc, timeout: timeout}
}

// RegisterRoutes 注册生成相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/generator/sessions", func(r chi.Router) {
		r.Post("/", h.handleCreateSession)
		r.Get("/{sessionID}", h.handleGetSession)
		r.Delete("/{sessionID}", h.handleDeleteSession)
		r.Post("/{sessionID}/generate", h.handleGenerate)
		r.Post("/{sessionID}/register", h.handleRegister)
	})
}

type sessionResponse struct {
	Session chat.SessionInfo        `json:"session"`
	History []chat.Message          `json:"history"`
	Turns   []generatorService.Turn `json:"turns"`
	Draft   *persona.Persona        `json:"draft,omitempty"`
}

type generateResponse struct {
	Commentary string          `json:"commentary"`
	Persona    persona.Persona `json:"persona"`
	Turn       int             `json:"turn"`
}

// handleCreateSession 创建生成会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Model        string `json:"model"`
		ExampleCount int    `json:"exampleCount"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	info, session, err := h.svc.CreateSession(r.Context(), payload.Model, payload.ExampleCount)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, describe(info, session))
}

// handleGetSession 返回会话历史与草稿
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	info, session, err := h.svc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, describe(info, session))
}

// handleDeleteSession 重置会话
func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		httperr.Respond(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGenerate 执行一轮生成
func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	_, session, err := h.svc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		httperr.Respond(w, err)
		return
	}

	var payload struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := h.callContext(r.Context())
	defer cancel()

	commentary, p, err := session.Generate(ctx, payload.Prompt)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, generateResponse{
		Commentary: commentary,
		Persona:    p,
		Turn:       len(session.Turns()) - 1,
	})
}

// handleRegister 保存当前草稿，可选地先切换到指定轮次
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	_, session, err := h.svc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		httperr.Respond(w, err)
		return
	}

	var payload struct {
		Name string `json:"name"`
		Turn *int   `json:"turn,omitempty"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if payload.Turn != nil {
		if err := session.SelectTurn(*payload.Turn); err != nil {
			httperr.Respond(w, err)
			return
		}
	}

	id, err := session.RegisterDraft(r.Context(), payload.Name)
	if err != nil {
		httperr.Respond(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) callContext(parent context.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, h.timeout)
}

func describe(info chat.SessionInfo, session *generatorService.Session) sessionResponse {
	resp := sessionResponse{
		Session: info,
		History: session.History(),
		Turns:   session.Turns(),
	}
	if draft, ok := session.Draft(); ok {
		resp.Draft = &draft
	}
	return resp
}
