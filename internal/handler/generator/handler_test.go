package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/persona-lab/backend/internal/config"
	"github.com/zhouzirui/persona-lab/backend/internal/dataset"
	"github.com/zhouzirui/persona-lab/backend/internal/model/persona"
	"github.com/zhouzirui/persona-lab/backend/internal/service/ai"
	"github.com/zhouzirui/persona-lab/backend/internal/service/ai/aitest"
	generatorService "github.com/zhouzirui/persona-lab/backend/internal/service/generator"
)

type fixture struct {
	router *chi.Mux
	fake   *aitest.FakeModel
	store  *persona.MemoryStore
}

func setupRouter(t *testing.T) fixture {
	t.Helper()
	fake := aitest.NewFakeModel()
	store := persona.NewMemoryStore()
	catalog, err := ai.NewServiceWithModel(context.Background(), fake, config.AIConfig{DefaultModel: "gpt-4o-mini", Models: []string{"gpt-4o-mini"}})
	if err != nil {
		t.Fatalf("new ai service: %v", err)
	}
	examples := dataset.Records{
		{{Key: "persona", Value: "one"}},
		{{Key: "persona", Value: "two"}},
		{{Key: "persona", Value: "three"}},
	}
	svc := generatorService.NewService(catalog.Chain(), catalog, examples, 2, store)

	r := chi.NewRouter()
	New(svc, 0).RegisterRoutes(r)
	return fixture{router: r, fake: fake, store: store}
}

func (f fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	return resp
}

func (f fixture) createSession(t *testing.T) string {
	t.Helper()
	resp := f.do(http.MethodPost, "/generator/sessions", map[string]any{})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var body sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.History) != 1 {
		t.Fatalf("expected system prompt only, got %d messages", len(body.History))
	}
	return body.Session.ID
}

func TestGenerateAndRegister(t *testing.T) {
	f := setupRouter(t)
	id := f.createSession(t)

	f.fake.QueueReply(aitest.Reply{Content: aitest.GenerationReply("Meet Mike.", aitest.SamplePersona())})
	resp := f.do(http.MethodPost, "/generator/sessions/"+id+"/generate", map[string]string{"prompt": "a marketer"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var gen generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if gen.Commentary != "Meet Mike." || gen.Turn != 0 {
		t.Fatalf("unexpected generate response: %+v", gen)
	}

	resp = f.do(http.MethodPost, "/generator/sessions/"+id+"/register", map[string]string{"name": "Marketing_Mike"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var reg map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&reg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(reg["id"], "Marketing_Mike_") {
		t.Fatalf("unexpected id: %s", reg["id"])
	}
	if _, err := f.store.Load(context.Background(), reg["id"]); err != nil {
		t.Fatalf("persona not stored: %v", err)
	}
}

func TestRegisterWithoutDraft(t *testing.T) {
	f := setupRouter(t)
	id := f.createSession(t)

	resp := f.do(http.MethodPost, "/generator/sessions/"+id+"/register", map[string]string{"name": "x"})
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
}

func TestGenerateErrors(t *testing.T) {
	f := setupRouter(t)
	id := f.createSession(t)

	f.fake.QueueReply(aitest.Reply{Content: "not json at all"})
	resp := f.do(http.MethodPost, "/generator/sessions/"+id+"/generate", map[string]string{"prompt": "anyone"})
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.Code)
	}

	f.fake.QueueReply(aitest.Reply{Err: context.DeadlineExceeded})
	resp = f.do(http.MethodPost, "/generator/sessions/"+id+"/generate", map[string]string{"prompt": "anyone"})
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}

	resp = f.do(http.MethodPost, "/generator/sessions/"+id+"/generate", map[string]string{"prompt": ""})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}

	resp = f.do(http.MethodPost, "/generator/sessions/missing/generate", map[string]string{"prompt": "anyone"})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestCreateSessionRejectsExampleCount(t *testing.T) {
	f := setupRouter(t)

	resp := f.do(http.MethodPost, "/generator/sessions", map[string]int{"exampleCount": 4})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestDeleteSession(t *testing.T) {
	f := setupRouter(t)
	id := f.createSession(t)

	if resp := f.do(http.MethodDelete, "/generator/sessions/"+id, nil); resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if resp := f.do(http.MethodGet, "/generator/sessions/"+id, nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
