package stream

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/persona-lab/backend/internal/handler/httperr"
	chatService "github.com/zhouzirui/persona-lab/backend/internal/service/chat"
)

const (
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// pongWait 是两次读之间允许的最长空闲时间，回复期间不计入。
var pongWait = 60 * time.Second

// WebSocketHandler relays chat turns over a WebSocket connection.
type WebSocketHandler struct {
	chatSvc  *chatService.Service
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(chatSvc *chatService.Service) *WebSocketHandler {
	return &WebSocketHandler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterWebSocketRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/chat/sessions/{sessionID}/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Content   string `json:"content,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	_, session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		httperr.Respond(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[websocket] new connection for session: %s", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	out := &wsWriter{conn: conn, sessionID: sessionID}
	go out.pingLoop(ctx)

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		if msg.Type != "message" {
			if err := out.send(outgoingMessage{Type: "error", Error: "unsupported message type: " + msg.Type}); err != nil {
				return
			}
			continue
		}

		// 回复可能比 pongWait 更久，期间不读，结束后重新计时
		conn.SetReadDeadline(time.Time{})
		err := relayTurn(ctx, session, out, msg.Text)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		if err != nil {
			log.Printf("[websocket] turn failed session=%s: %v", sessionID, err)
		}
	}
}

type sender interface {
	send(msg outgoingMessage) error
}

// relayTurn streams one reply to out. A failed write cancels the upstream
// request and abandons the reply.
func relayTurn(ctx context.Context, session *chatService.Session, out sender, text string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reply, err := session.StreamTurn(ctx, text)
	if err != nil {
		out.send(outgoingMessage{Type: "error", Error: err.Error()})
		return err
	}
	defer reply.Close()

	if err := out.send(outgoingMessage{Type: "start"}); err != nil {
		return err
	}

	var full strings.Builder
	for {
		part, recvErr := reply.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			out.send(outgoingMessage{Type: "error", Error: recvErr.Error()})
			return recvErr
		}
		full.WriteString(part)
		if err := out.send(outgoingMessage{Type: "delta", Content: part}); err != nil {
			cancel()
			return err
		}
	}

	if err := out.send(outgoingMessage{Type: "message", Content: full.String()}); err != nil {
		return err
	}
	return out.send(outgoingMessage{Type: "end"})
}

// wsWriter serialises writes from the read loop and the ping loop.
type wsWriter struct {
	conn      *websocket.Conn
	sessionID string
	mu        sync.Mutex
}

func (w *wsWriter) send(msg outgoingMessage) error {
	msg.SessionID = w.sessionID
	msg.Timestamp = time.Now().Unix()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := w.conn.WriteJSON(msg); err != nil {
		log.Printf("[websocket] write %s failed: %v", msg.Type, err)
		return err
	}
	return nil
}

// pingLoop 定期发送ping消息
func (w *wsWriter) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.mu.Lock()
			err := w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			w.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
