package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/persona-lab/backend/internal/config"
	"github.com/zhouzirui/persona-lab/backend/internal/model/persona"
	"github.com/zhouzirui/persona-lab/backend/internal/service/ai"
	"github.com/zhouzirui/persona-lab/backend/internal/service/ai/aitest"
	chatservice "github.com/zhouzirui/persona-lab/backend/internal/service/chat"
)

func setupRouter(t *testing.T) (*chi.Mux, *aitest.FakeModel) {
	t.Helper()
	store := persona.NewMemoryStore()
	if err := store.Save(context.Background(), "marketing_mike", aitest.SamplePersona()); err != nil {
		t.Fatalf("seed persona: %v", err)
	}
	fake := aitest.NewFakeModel()
	catalog, err := ai.NewServiceWithModel(context.Background(), fake, config.AIConfig{DefaultModel: "gpt-4o-mini", Models: []string{"gpt-4o-mini"}})
	if err != nil {
		t.Fatalf("new ai service: %v", err)
	}
	chatSvc := chatservice.NewService(catalog.Chain(), catalog, store)
	handler := New(chatSvc, 0)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, fake
}

func post(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func createSession(t *testing.T, r http.Handler) string {
	t.Helper()
	resp := post(r, "/chat/sessions", map[string]string{"personaId": "marketing_mike"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var body sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body.Session.ID
}

func TestCreateSessionValidPersona(t *testing.T) {
	r, _ := setupRouter(t)
	createSession(t, r)
}

func TestCreateSessionInvalidPersona(t *testing.T) {
	r, _ := setupRouter(t)

	resp := post(r, "/chat/sessions", map[string]string{"personaId": "non-existent"})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestCreateSessionMissingPersonaID(t *testing.T) {
	r, _ := setupRouter(t)

	resp := post(r, "/chat/sessions", map[string]string{})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSendMessage(t *testing.T) {
	r, fake := setupRouter(t)
	id := createSession(t, r)

	fake.QueueReply(aitest.Reply{Content: "Mostly loyalty programs."})
	resp := post(r, "/chat/sessions/"+id+"/messages", map[string]string{"message": "What do you run?"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["reply"] != "Mostly loyalty programs." {
		t.Fatalf("unexpected reply: %v", body)
	}

	req := httptest.NewRequest(http.MethodGet, "/chat/sessions/"+id, nil)
	getResp := httptest.NewRecorder()
	r.ServeHTTP(getResp, req)

	var session sessionResponse
	if err := json.NewDecoder(getResp.Body).Decode(&session); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(session.History) != 3 {
		t.Fatalf("expected 3 history entries, got %d", len(session.History))
	}
}

func TestSendMessageUpstreamError(t *testing.T) {
	r, fake := setupRouter(t)
	id := createSession(t, r)

	fake.QueueReply(aitest.Reply{Err: errors.New("503 from provider")})
	resp := post(r, "/chat/sessions/"+id+"/messages", map[string]string{"message": "hello"})
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}
}

func TestSendMessageUnknownSession(t *testing.T) {
	r, _ := setupRouter(t)

	resp := post(r, "/chat/sessions/missing/messages", map[string]string{"message": "hello"})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
