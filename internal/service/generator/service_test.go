package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/persona-lab/backend/internal/config"
	"github.com/zhouzirui/persona-lab/backend/internal/dataset"
	"github.com/zhouzirui/persona-lab/backend/internal/model/chat"
	"github.com/zhouzirui/persona-lab/backend/internal/model/persona"
	"github.com/zhouzirui/persona-lab/backend/internal/service/ai"
	"github.com/zhouzirui/persona-lab/backend/internal/service/ai/aitest"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	aiSvc, err := ai.NewServiceWithModel(context.Background(), aitest.NewFakeModel(), config.AIConfig{
		DefaultModel: "gpt-4o-mini",
		Models:       []string{"gpt-4o-mini", "gpt-4o"},
	})
	require.NoError(t, err)
	return NewService(aiSvc.Chain(), aiSvc, exampleSource(5), 3, persona.NewMemoryStore())
}

func TestServiceSessionLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	info, session, err := svc.CreateSession(ctx, "", 0)
	require.NoError(t, err)
	assert.Equal(t, chat.KindGenerator, info.Kind)
	assert.Equal(t, "gpt-4o-mini", info.Model)
	assert.Equal(t, "gpt-4o-mini", session.ModelName())

	gotInfo, gotSession, err := svc.GetSession(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, info, gotInfo)
	assert.Same(t, session, gotSession)

	require.NoError(t, svc.DeleteSession(ctx, info.ID))
	_, _, err = svc.GetSession(ctx, info.ID)
	assert.True(t, errors.Is(err, ErrSessionNotFound))
	assert.True(t, errors.Is(svc.DeleteSession(ctx, info.ID), ErrSessionNotFound))
}

func TestServiceCreateSessionValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.CreateSession(ctx, "claude-unknown", 0)
	assert.True(t, errors.Is(err, ai.ErrUnknownModel))

	_, _, err = svc.CreateSession(ctx, "gpt-4o", 9)
	assert.True(t, errors.Is(err, dataset.ErrSampleSize))

	info, _, err := svc.CreateSession(ctx, "gpt-4o", 5)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", info.Model)
}
