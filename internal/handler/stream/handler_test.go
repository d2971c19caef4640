package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/persona-lab/backend/internal/config"
	"github.com/zhouzirui/persona-lab/backend/internal/model/persona"
	"github.com/zhouzirui/persona-lab/backend/internal/service/ai"
	"github.com/zhouzirui/persona-lab/backend/internal/service/ai/aitest"
	chatservice "github.com/zhouzirui/persona-lab/backend/internal/service/chat"
)

func setupService(t *testing.T) (*chatservice.Service, *aitest.FakeModel, string) {
	t.Helper()
	store := persona.NewMemoryStore()
	ctx := context.Background()
	if err := store.Save(ctx, "marketing_mike", aitest.SamplePersona()); err != nil {
		t.Fatalf("seed persona: %v", err)
	}
	fake := aitest.NewFakeModel()
	catalog, err := ai.NewServiceWithModel(ctx, fake, config.AIConfig{DefaultModel: "gpt-4o-mini", Models: []string{"gpt-4o-mini"}})
	if err != nil {
		t.Fatalf("new ai service: %v", err)
	}
	svc := chatservice.NewService(catalog.Chain(), catalog, store)

	info, _, err := svc.CreateSession(ctx, "marketing_mike", "")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	return svc, fake, info.ID
}

func parseEvents(t *testing.T, body string) []StreamResponse {
	t.Helper()
	var events []StreamResponse
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if !strings.HasPrefix(block, "data: ") {
			continue
		}
		var ev StreamResponse
		if err := json.Unmarshal([]byte(strings.TrimPrefix(block, "data: ")), &ev); err != nil {
			t.Fatalf("decode event %q: %v", block, err)
		}
		events = append(events, ev)
	}
	return events
}

func streamRequest(r http.Handler, sessionID, message string) *httptest.ResponseRecorder {
	path := "/chat/sessions/" + sessionID + "/stream?message=" + url.QueryEscape(message)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
	return resp
}

func TestStreamRelaysDeltas(t *testing.T) {
	svc, fake, id := setupService(t)
	fake.QueueStream(aitest.StreamScript{Chunks: []string{"He", "llo"}})

	r := chi.NewRouter()
	New(svc).RegisterRoutes(r)

	resp := streamRequest(r, id, "hi there")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	events := parseEvents(t, resp.Body.String())
	var kinds []string
	for _, ev := range events {
		kinds = append(kinds, ev.Event)
	}
	if got := strings.Join(kinds, ","); got != "start,delta,delta,message,end" {
		t.Fatalf("unexpected event sequence %s", got)
	}
	if events[3].Content != "Hello" {
		t.Fatalf("expected full message Hello, got %q", events[3].Content)
	}

	_, session, _ := svc.GetSession(context.Background(), id)
	history := session.History()
	if len(history) != 3 || history[2].Content != "Hello" {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestStreamReportsUpstreamError(t *testing.T) {
	svc, fake, id := setupService(t)
	fake.QueueStream(aitest.StreamScript{Chunks: []string{"Par"}, Err: errors.New("reset by peer")})

	r := chi.NewRouter()
	New(svc).RegisterRoutes(r)

	events := parseEvents(t, streamRequest(r, id, "hi").Body.String())
	last := events[len(events)-1]
	if last.Event != "error" {
		t.Fatalf("expected trailing error event, got %+v", last)
	}

	_, session, _ := svc.GetSession(context.Background(), id)
	if n := len(session.History()); n != 2 {
		t.Fatalf("expected user turn only, got %d entries", n)
	}
}

func TestStreamRequiresMessage(t *testing.T) {
	svc, _, id := setupService(t)
	r := chi.NewRouter()
	New(svc).RegisterRoutes(r)

	if resp := streamRequest(r, id, ""); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestStreamUnknownSession(t *testing.T) {
	svc, _, _ := setupService(t)
	r := chi.NewRouter()
	New(svc).RegisterRoutes(r)

	if resp := streamRequest(r, "missing", "hi"); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
