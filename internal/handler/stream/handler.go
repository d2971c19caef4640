package stream

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/persona-lab/backend/internal/handler/httperr"
	chatService "github.com/zhouzirui/persona-lab/backend/internal/service/chat"
	"github.com/zhouzirui/persona-lab/backend/pkg/utils"
)

// Handler manages streaming persona replies via Server-Sent Events
type Handler struct {
	chatSvc *chatService.Service
}

// New creates a new stream handler
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册流式聊天路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/sessions/{sessionID}/stream", h.handleStream)
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	userMessage := r.URL.Query().Get("message")

	if strings.TrimSpace(userMessage) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	if err := h.HandleStreamRequest(r.Context(), w, sessionID, userMessage); err != nil {
		log.Printf("[stream] error handling request: %v", err)
	}
}

// HandleStreamRequest sends message to the session and relays the reply as
// SSE events. Errors raised before the stream opens are answered with a
// regular JSON error response.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID string, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return errors.New("streaming unsupported")
	}

	info, session, err := h.chatSvc.GetSession(ctx, sessionID)
	if err != nil {
		httperr.Respond(w, err)
		return err
	}

	reply, err := session.StreamTurn(ctx, userMessage)
	if err != nil {
		httperr.Respond(w, err)
		return err
	}
	defer reply.Close()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	_ = utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "start",
		SessionID: sessionID,
	})

	var full strings.Builder
	for {
		part, recvErr := reply.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			_ = utils.SendSSEChunk(w, flusher, StreamResponse{
				Event:     "error",
				SessionID: sessionID,
				Error:     recvErr.Error(),
			})
			return recvErr
		}

		full.WriteString(part)
		if err := utils.SendSSEChunk(w, flusher, StreamResponse{
			Event:     "delta",
			SessionID: sessionID,
			Content:   part,
		}); err != nil {
			// client went away; the deferred Close abandons the reply
			return err
		}
	}

	_ = utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "message",
		SessionID: sessionID,
		Content:   full.String(),
	})
	_ = utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "end",
		SessionID: sessionID,
		Finished:  true,
	})

	log.Printf("[stream] completed response for session=%s, persona=%s", sessionID, info.PersonaID)
	return nil
}
