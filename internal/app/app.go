// Package app assembles the services shared by the API server and the
// operator CLI.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/zhouzirui/persona-lab/backend/internal/config"
	"github.com/zhouzirui/persona-lab/backend/internal/dataset"
	"github.com/zhouzirui/persona-lab/backend/internal/model/persona"
	"github.com/zhouzirui/persona-lab/backend/internal/service/ai"
	"github.com/zhouzirui/persona-lab/backend/internal/service/chat"
	"github.com/zhouzirui/persona-lab/backend/internal/service/generator"
)

// App holds the wired services.
type App struct {
	Config    *config.Config
	Personas  *persona.FileStore
	Examples  dataset.Source
	AI        *ai.Service
	Generator *generator.Service
	Chat      *chat.Service
}

// LoadExamples reads the configured example dataset, falling back to the
// bundled sample.
func LoadExamples(cfg config.PersonaConfig) (dataset.Source, error) {
	if cfg.ExamplesPath == "" {
		examples := dataset.Default()
		log.Printf("[app] using bundled example personas (%d records)", examples.Len())
		return examples, nil
	}

	examples, err := dataset.LoadJSONL(cfg.ExamplesPath)
	if err != nil {
		return nil, fmt.Errorf("load example personas: %w", err)
	}
	log.Printf("[app] loaded %d example personas from %s", examples.Len(), cfg.ExamplesPath)
	return examples, nil
}

// New builds every service from cfg. It fails when no model provider is
// configured.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	examples, err := LoadExamples(cfg.Persona)
	if err != nil {
		return nil, err
	}
	if cfg.Persona.ExampleCount > examples.Len() {
		return nil, fmt.Errorf("%w: PERSONA_EXAMPLE_COUNT=%d but only %d examples are available",
			dataset.ErrSampleSize, cfg.Persona.ExampleCount, examples.Len())
	}

	aiSvc, err := ai.NewService(ctx, cfg.AI)
	if err != nil {
		return nil, err
	}

	store := persona.NewFileStore(cfg.Persona.Dir)
	return &App{
		Config:    cfg,
		Personas:  store,
		Examples:  examples,
		AI:        aiSvc,
		Generator: generator.NewService(aiSvc.Chain(), aiSvc, examples, cfg.Persona.ExampleCount, store),
		Chat:      chat.NewService(aiSvc.Chain(), aiSvc, store),
	}, nil
}
