package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zhouzirui/persona-lab/backend/internal/model/persona"
)

// GenerationResult is the structured reply expected from a generation turn.
type GenerationResult struct {
	Commentary string          `json:"llm_response"`
	Persona    persona.Persona `json:"persona_response"`
}

type generationPayload struct {
	Commentary *string         `json:"llm_response"`
	Persona    *persona.Record `json:"persona_response"`
}

// ParseGenerationResult decodes the model output into a GenerationResult.
// Prose or code fences around the outermost JSON object are tolerated; any
// shape mismatch is reported as persona.ErrValidation.
func ParseGenerationResult(content string) (GenerationResult, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return GenerationResult{}, fmt.Errorf("%w: model reply has no json object", persona.ErrValidation)
	}

	var payload generationPayload
	dec := json.NewDecoder(bytes.NewReader([]byte(trimmed[start : end+1])))
	if err := dec.Decode(&payload); err != nil {
		return GenerationResult{}, fmt.Errorf("%w: decode model reply: %v", persona.ErrValidation, err)
	}
	if payload.Commentary == nil {
		return GenerationResult{}, fmt.Errorf("%w: missing llm_response", persona.ErrValidation)
	}
	if payload.Persona == nil {
		return GenerationResult{}, fmt.Errorf("%w: missing persona_response", persona.ErrValidation)
	}

	p, err := payload.Persona.ToPersona()
	if err != nil {
		return GenerationResult{}, err
	}
	return GenerationResult{Commentary: *payload.Commentary, Persona: p}, nil
}

// Render returns the canonical JSON form stored as the assistant turn.
func (r GenerationResult) Render() string {
	data, err := json.Marshal(r)
	if err != nil {
		return r.Commentary
	}
	return string(data)
}
