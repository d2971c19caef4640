// Package generator implements the persona generation conversation: a
// dialogue with the model that produces and iterates persona drafts.
//
// Every turn resends the whole dialogue so the model can refine its previous
// draft. Request size grows linearly with the number of turns, which is fine
// for short interactive sessions but not for long-running ones.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/persona-lab/backend/internal/dataset"
	"github.com/zhouzirui/persona-lab/backend/internal/model/chat"
	"github.com/zhouzirui/persona-lab/backend/internal/model/persona"
	"github.com/zhouzirui/persona-lab/backend/internal/service/ai"
)

var (
	ErrNoDraft        = errors.New("no generated persona to register")
	ErrEmptyPrompt    = errors.New("prompt must not be empty")
	ErrTurnOutOfRange = errors.New("turn index out of range")
)

// maxRegisterAttempts bounds the numeric suffixes tried on identifier collisions.
const maxRegisterAttempts = 10

// Turn records one successful generation exchange.
type Turn struct {
	Prompt     string          `json:"prompt"`
	Commentary string          `json:"commentary"`
	Persona    persona.Persona `json:"persona"`
}

// Options configures a generation session.
type Options struct {
	Chain        *ai.Chain
	ModelName    string
	Examples     dataset.Source
	ExampleCount int
	Store        persona.Store
	Prompts      *ai.PromptBuilder
	Rand         *rand.Rand
	Now          func() time.Time
}

// Session holds the dialogue history and the current draft of one generation
// workflow. Only one turn may run at a time.
type Session struct {
	chain     *ai.Chain
	modelName string
	system    string
	store     persona.Store
	now       func() time.Time

	turnMu sync.Mutex

	mu      sync.RWMutex
	history []*schema.Message
	turns   []Turn
	draft   *persona.Persona
}

// New samples the few-shot examples and builds the system instruction.
func New(opts Options) (*Session, error) {
	if opts.Chain == nil {
		return nil, errors.New("chat chain is required")
	}
	if opts.Examples == nil {
		return nil, errors.New("example source is required")
	}
	if opts.Store == nil {
		return nil, errors.New("persona store is required")
	}

	examples, err := dataset.Sample(opts.Examples, opts.ExampleCount, opts.Rand)
	if err != nil {
		return nil, err
	}

	prompts := opts.Prompts
	if prompts == nil {
		prompts = ai.NewPromptBuilder()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Session{
		chain:     opts.Chain,
		modelName: opts.ModelName,
		system:    prompts.BuildGeneratorPrompt(examples),
		store:     opts.Store,
		now:       now,
	}, nil
}

// ModelName returns the model selected for this session.
func (s *Session) ModelName() string {
	return s.modelName
}

// Generate sends prompt with the full history and returns the model's
// commentary and persona. On any failure the history is left untouched.
func (s *Session) Generate(ctx context.Context, prompt string) (string, persona.Persona, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", persona.Persona{}, ErrEmptyPrompt
	}
	if !s.turnMu.TryLock() {
		return "", persona.Persona{}, ai.ErrTurnInProgress
	}
	defer s.turnMu.Unlock()

	s.mu.RLock()
	history := append([]*schema.Message(nil), s.history...)
	s.mu.RUnlock()

	reply, err := s.chain.Invoke(ctx, s.system, history, prompt, ai.CallOptions(s.modelName, true)...)
	if err != nil {
		return "", persona.Persona{}, fmt.Errorf("%w: %w", ai.ErrUpstream, err)
	}
	if reply == nil {
		return "", persona.Persona{}, fmt.Errorf("%w: empty reply", ai.ErrUpstream)
	}

	result, err := ai.ParseGenerationResult(reply.Content)
	if err != nil {
		log.Printf("[generator] rejected model reply: %v", err)
		return "", persona.Persona{}, err
	}

	s.mu.Lock()
	s.history = append(s.history, schema.UserMessage(prompt), schema.AssistantMessage(result.Render(), nil))
	s.turns = append(s.turns, Turn{Prompt: prompt, Commentary: result.Commentary, Persona: result.Persona})
	draft := result.Persona
	s.draft = &draft
	s.mu.Unlock()

	log.Printf("[generator] turn %d completed with model=%s", len(s.turns), s.modelName)
	return result.Commentary, result.Persona, nil
}

// SelectTurn makes the persona produced by turn i the current draft.
func (s *Session) SelectTurn(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.turns) {
		return fmt.Errorf("%w: %d", ErrTurnOutOfRange, i)
	}
	draft := s.turns[i].Persona
	s.draft = &draft
	return nil
}

// RegisterDraft persists the current draft under "<name>_<timestamp>" and
// returns the identifier. An empty name gets a random "persona_xxxxxxxx"
// base. Identifier collisions are retried with a numeric suffix.
func (s *Session) RegisterDraft(ctx context.Context, name string) (string, error) {
	s.mu.RLock()
	draft := s.draft
	s.mu.RUnlock()
	if draft == nil {
		return "", ErrNoDraft
	}

	base := persona.NewID(name, s.now())

	for attempt := 1; attempt <= maxRegisterAttempts; attempt++ {
		id := base
		if attempt > 1 {
			id = fmt.Sprintf("%s_%d", base, attempt)
		}

		err := s.store.Create(ctx, id, *draft)
		if err == nil {
			log.Printf("[generator] registered persona id=%s", id)
			return id, nil
		}
		if !errors.Is(err, persona.ErrExists) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s after %d attempts", persona.ErrExists, base, maxRegisterAttempts)
}

// Draft returns the current draft, if any.
func (s *Session) Draft() (persona.Persona, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.draft == nil {
		return persona.Persona{}, false
	}
	return *s.draft, true
}

// Turns returns a copy of the successful turns.
func (s *Session) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// History returns a copy of the dialogue sent to the model, starting with
// the system instruction.
func (s *Session) History() []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return toMessages(s.system, s.history)
}

func toMessages(system string, history []*schema.Message) []chat.Message {
	out := make([]chat.Message, 0, len(history)+1)
	out = append(out, chat.Message{Role: chat.RoleSystem, Content: system})
	for _, msg := range history {
		out = append(out, chat.Message{Role: chat.Role(msg.Role), Content: msg.Content})
	}
	return out
}
