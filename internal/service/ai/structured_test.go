package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/persona-lab/backend/internal/config"
	"github.com/zhouzirui/persona-lab/backend/internal/dataset"
	"github.com/zhouzirui/persona-lab/backend/internal/model/persona"
	"github.com/zhouzirui/persona-lab/backend/internal/service/ai/aitest"
)

const validReply = `{"llm_response": "Here is Maya.", "persona_response": {
 "persona": "A curious marketer", "professional_persona": "Growth lead", "sports_persona": "Trail runner",
 "arts_persona": "Indie film fan", "travel_persona": "Backpacker", "culinary_persona": "Ramen hunter",
 "skills_and_expertise": "SEO and analytics", "skills_and_expertise_list": ["seo", "analytics"],
 "hobbies_and_interests": "Running and film", "hobbies_and_interests_list": ["running", "film"],
 "career_goals_and_ambitions": "Become a CMO"}}`

func TestParseGenerationResult(t *testing.T) {
	res, err := ParseGenerationResult(validReply)
	require.NoError(t, err)

	assert.Equal(t, "Here is Maya.", res.Commentary)
	assert.Equal(t, "A curious marketer", res.Persona.Persona)
	assert.Equal(t, []string{"seo", "analytics"}, res.Persona.SkillsAndExpertiseList)
}

func TestParseGenerationResultToleratesFences(t *testing.T) {
	res, err := ParseGenerationResult("Sure!\n```json\n" + validReply + "\n```")
	require.NoError(t, err)
	assert.Equal(t, "Become a CMO", res.Persona.CareerGoalsAndAmbitions)
}

func TestParseGenerationResultRejectsBadShapes(t *testing.T) {
	cases := map[string]string{
		"no json":         "I cannot do that.",
		"broken json":     `{"llm_response": "x", `,
		"no commentary":   `{"persona_response": {}}`,
		"no persona":      `{"llm_response": "x"}`,
		"missing field":   strings.Replace(validReply, `"sports_persona": "Trail runner",`, "", 1),
		"list not array":  strings.Replace(validReply, `["seo", "analytics"]`, `"seo, analytics"`, 1),
		"blank narrative": strings.Replace(validReply, `"Backpacker"`, `"  "`, 1),
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseGenerationResult(reply)
			require.Error(t, err)
			assert.True(t, errors.Is(err, persona.ErrValidation), err.Error())
		})
	}
}

func TestGenerationResultRenderRoundTrip(t *testing.T) {
	res, err := ParseGenerationResult(validReply)
	require.NoError(t, err)

	again, err := ParseGenerationResult(res.Render())
	require.NoError(t, err)
	assert.Equal(t, res, again)
}

func TestBuildGeneratorPrompt(t *testing.T) {
	examples := []dataset.Record{
		{{Key: "persona", Value: "first"}},
		{{Key: "persona", Value: "second"}},
	}
	prompt := NewPromptBuilder().BuildGeneratorPrompt(examples)

	assert.Contains(t, prompt, "expert in persona generation")
	assert.Contains(t, prompt, "Example Persona 1: persona: first")
	assert.Contains(t, prompt, "Example Persona 2: persona: second")
	assert.Contains(t, prompt, `"persona_response"`)
}

func TestBuildActorPrompt(t *testing.T) {
	res, err := ParseGenerationResult(validReply)
	require.NoError(t, err)

	prompt, err := NewPromptBuilder().BuildActorPrompt(res.Persona)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(prompt, `This is your detailed persona: {"persona":"A curious marketer"`))
	assert.Contains(t, prompt, "Do not reveal that you are an AI model")
}

func TestResolveModel(t *testing.T) {
	svc, err := NewServiceWithModel(context.Background(), aitest.NewFakeModel(), config.AIConfig{
		DefaultModel: "gpt-4o-mini",
		Models:       []string{"gpt-4o-mini", "gpt-5"},
	})
	require.NoError(t, err)
	require.NotNil(t, svc.Chain())

	name, err := svc.ResolveModel("")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", name)

	name, err = svc.ResolveModel("gpt-5")
	require.NoError(t, err)
	assert.Equal(t, "gpt-5", name)

	_, err = svc.ResolveModel("claude")
	assert.True(t, errors.Is(err, ErrUnknownModel))

	assert.Len(t, CallOptions("gpt-5", true), 2)
	assert.Empty(t, CallOptions("", false))
}
