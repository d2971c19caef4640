package generator

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/persona-lab/backend/internal/dataset"
	"github.com/zhouzirui/persona-lab/backend/internal/model/chat"
	"github.com/zhouzirui/persona-lab/backend/internal/model/persona"
	"github.com/zhouzirui/persona-lab/backend/internal/service/ai"
)

var ErrSessionNotFound = errors.New("generator session not found")

// ModelCatalog resolves the model name a session should use.
type ModelCatalog interface {
	ResolveModel(name string) (string, error)
}

// Service keeps the live generation sessions in memory.
type Service struct {
	chain        *ai.Chain
	catalog      ModelCatalog
	examples     dataset.Source
	exampleCount int
	store        persona.Store
	prompts      *ai.PromptBuilder

	mu       sync.RWMutex
	sessions map[string]*entry
}

type entry struct {
	info    chat.SessionInfo
	session *Session
}

// NewService wires the generator registry. exampleCount is the default used
// when a caller does not pick one.
func NewService(chain *ai.Chain, catalog ModelCatalog, examples dataset.Source, exampleCount int, store persona.Store) *Service {
	return &Service{
		chain:        chain,
		catalog:      catalog,
		examples:     examples,
		exampleCount: exampleCount,
		store:        store,
		prompts:      ai.NewPromptBuilder(),
		sessions:     make(map[string]*entry),
	}
}

// CreateSession starts a new generation dialogue. exampleCount <= 0 selects
// the configured default.
func (s *Service) CreateSession(_ context.Context, modelName string, exampleCount int) (chat.SessionInfo, *Session, error) {
	resolved, err := s.catalog.ResolveModel(modelName)
	if err != nil {
		return chat.SessionInfo{}, nil, err
	}
	if exampleCount <= 0 {
		exampleCount = s.exampleCount
	}

	session, err := New(Options{
		Chain:        s.chain,
		ModelName:    resolved,
		Examples:     s.examples,
		ExampleCount: exampleCount,
		Store:        s.store,
		Prompts:      s.prompts,
	})
	if err != nil {
		return chat.SessionInfo{}, nil, err
	}

	info := chat.SessionInfo{
		ID:        uuid.NewString(),
		Kind:      chat.KindGenerator,
		Model:     resolved,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[info.ID] = &entry{info: info, session: session}
	s.mu.Unlock()

	log.Printf("[generator] session %s created with model=%s examples=%d", info.ID, resolved, exampleCount)
	return info, session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.SessionInfo, *Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return chat.SessionInfo{}, nil, ErrSessionNotFound
	}
	return e.info, e.session, nil
}

// DeleteSession drops a session; the persisted personas are untouched.
func (s *Service) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}
