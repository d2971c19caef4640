package persona

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/persona-lab/backend/internal/model/persona"
	"github.com/zhouzirui/persona-lab/backend/internal/service/ai/aitest"
)

func setupRouter(t *testing.T) *chi.Mux {
	t.Helper()
	store := persona.NewMemoryStore()
	if err := store.Save(context.Background(), "marketing_mike_20250101_000000", aitest.SamplePersona()); err != nil {
		t.Fatalf("seed persona: %v", err)
	}

	r := chi.NewRouter()
	New(store).RegisterRoutes(r)
	return r
}

func TestListPersonas(t *testing.T) {
	r := setupRouter(t)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/personas", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body struct {
		Personas []string `json:"personas"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Personas) != 1 || body.Personas[0] != "marketing_mike_20250101_000000" {
		t.Fatalf("unexpected personas: %v", body.Personas)
	}
}

func TestGetPersona(t *testing.T) {
	r := setupRouter(t)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/personas/marketing_mike_20250101_000000", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body personaResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Persona.CulinaryPersona != aitest.SamplePersona().CulinaryPersona {
		t.Fatalf("unexpected persona: %+v", body.Persona)
	}
}

func TestGetPersonaNotFound(t *testing.T) {
	r := setupRouter(t)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/personas/nobody", nil))

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
