package chat_test

import (
	"context"
	"errors"
	"testing"

	"github.com/zhouzirui/persona-lab/backend/internal/config"
	"github.com/zhouzirui/persona-lab/backend/internal/model/persona"
	"github.com/zhouzirui/persona-lab/backend/internal/service/ai"
	"github.com/zhouzirui/persona-lab/backend/internal/service/ai/aitest"
	chat "github.com/zhouzirui/persona-lab/backend/internal/service/chat"
)

func newService(t *testing.T) *chat.Service {
	t.Helper()
	store := persona.NewMemoryStore()
	if err := store.Save(context.Background(), "marketing_mike", aitest.SamplePersona()); err != nil {
		t.Fatalf("seed persona: %v", err)
	}
	aiSvc, err := ai.NewServiceWithModel(context.Background(), aitest.NewFakeModel(), config.AIConfig{DefaultModel: "gpt-4o-mini", Models: []string{"gpt-4o-mini", "gpt-4o"}})
	if err != nil {
		t.Fatalf("new ai service: %v", err)
	}
	return chat.NewService(aiSvc.Chain(), aiSvc, store)
}

func TestServiceGetSession(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	info, _, err := svc.CreateSession(ctx, "marketing_mike", "gpt-4o")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	got, session, err := svc.GetSession(ctx, info.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}

	if got.ID != info.ID {
		t.Fatalf("unexpected session ID: got %s want %s", got.ID, info.ID)
	}
	if got.PersonaID != "marketing_mike" {
		t.Fatalf("unexpected persona ID: got %s", got.PersonaID)
	}
	if session.ModelName() != "gpt-4o" {
		t.Fatalf("unexpected model: got %s", session.ModelName())
	}
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	if _, _, err := svc.GetSession(ctx, "missing"); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestServiceCreateSessionErrors(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	if _, _, err := svc.CreateSession(ctx, "", ""); !errors.Is(err, chat.ErrPersonaRequired) {
		t.Fatalf("expected ErrPersonaRequired, got %v", err)
	}
	if _, _, err := svc.CreateSession(ctx, "nobody", ""); !errors.Is(err, persona.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := svc.CreateSession(ctx, "marketing_mike", "unknown"); !errors.Is(err, ai.ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}
}

func TestServiceDeleteSession(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	info, _, err := svc.CreateSession(ctx, "marketing_mike", "")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	if err := svc.DeleteSession(ctx, info.ID); err != nil {
		t.Fatalf("DeleteSession err: %v", err)
	}
	if _, _, err := svc.GetSession(ctx, info.ID); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected deleted session to be gone, got %v", err)
	}
}
