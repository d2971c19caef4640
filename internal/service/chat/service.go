package chat

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/persona-lab/backend/internal/model/chat"
	"github.com/zhouzirui/persona-lab/backend/internal/model/persona"
	"github.com/zhouzirui/persona-lab/backend/internal/service/ai"
)

var (
	ErrPersonaRequired = errors.New("persona id is required")
	ErrSessionNotFound = errors.New("session not found")
)

// ModelCatalog resolves the model name a session should use.
type ModelCatalog interface {
	ResolveModel(name string) (string, error)
}

// Service encapsulates conversation state management.
type Service struct {
	chain    *ai.Chain
	catalog  ModelCatalog
	personas persona.Store
	prompts  *ai.PromptBuilder

	mu       sync.RWMutex
	sessions map[string]*entry
}

type entry struct {
	info    chat.SessionInfo
	session *Session
}

// NewService bootstraps the in-memory chat registry.
func NewService(chain *ai.Chain, catalog ModelCatalog, personas persona.Store) *Service {
	return &Service{
		chain:    chain,
		catalog:  catalog,
		personas: personas,
		prompts:  ai.NewPromptBuilder(),
		sessions: make(map[string]*entry),
	}
}

// CreateSession loads the persona and starts a conversation with it.
func (s *Service) CreateSession(ctx context.Context, personaID, modelName string) (chat.SessionInfo, *Session, error) {
	if personaID == "" {
		return chat.SessionInfo{}, nil, ErrPersonaRequired
	}

	resolved, err := s.catalog.ResolveModel(modelName)
	if err != nil {
		return chat.SessionInfo{}, nil, err
	}

	p, err := s.personas.Load(ctx, personaID)
	if err != nil {
		return chat.SessionInfo{}, nil, err
	}

	session, err := NewSession(Options{
		Chain:     s.chain,
		ModelName: resolved,
		PersonaID: personaID,
		Persona:   p,
		Prompts:   s.prompts,
	})
	if err != nil {
		return chat.SessionInfo{}, nil, err
	}

	info := chat.SessionInfo{
		ID:        uuid.NewString(),
		Kind:      chat.KindChat,
		PersonaID: personaID,
		Model:     resolved,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[info.ID] = &entry{info: info, session: session}
	s.mu.Unlock()

	log.Printf("[chat] session %s created persona=%s model=%s", info.ID, personaID, resolved)
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

// DeleteSession drops the conversation.
func (s *Service) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}
