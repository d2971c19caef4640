package persona

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("persona not found")
	ErrExists    = errors.New("persona identifier already exists")
	ErrInvalidID = errors.New("invalid persona identifier")
)

// IDTimeLayout is the timestamp suffix appended to every generated identifier.
const IDTimeLayout = "20060102_150405"

var (
	idPattern      = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)
	unsafeIDChars  = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
	maxBaseNameLen = 64
)

// Store exposes durable persona records keyed by identifier.
type Store interface {
	// Save writes p under id, replacing any existing record.
	Save(ctx context.Context, id string, p Persona) error
	// Create writes p under id and fails with ErrExists if id is taken.
	Create(ctx context.Context, id string, p Persona) error
	Load(ctx context.Context, id string) (Persona, error)
	List(ctx context.Context) ([]string, error)
}

// ValidateID rejects identifiers that cannot be used as a single file name.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// NewID builds "<base>_<timestamp>" from a user supplied name. Characters
// outside [A-Za-z0-9_-] are replaced with underscores. A name with nothing
// usable left falls back to a random "persona_xxxxxxxx" base.
func NewID(base string, now time.Time) string {
	base = strings.Trim(unsafeIDChars.ReplaceAllString(strings.TrimSpace(base), "_"), "_-")
	if len(base) > maxBaseNameLen {
		base = base[:maxBaseNameLen]
	}
	if base == "" {
		base = randomBaseName()
	}
	return base + "_" + now.Format(IDTimeLayout)
}

// randomBaseName returns "persona_" followed by eight hex characters.
func randomBaseName() string {
	return "persona_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// MemoryStore implements Store in memory, suitable for tests and dry runs.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Persona
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Persona)}
}

func (s *MemoryStore) Save(_ context.Context, id string, p Persona) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.items[id] = clonePersona(p)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Create(_ context.Context, id string, p Persona) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; ok {
		return fmt.Errorf("%w: %s", ErrExists, id)
	}
	s.items[id] = clonePersona(p)
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.items[id]
	if !ok {
		return Persona{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return clonePersona(p), nil
}

func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func clonePersona(p Persona) Persona {
	p.SkillsAndExpertiseList = append([]string{}, p.SkillsAndExpertiseList...)
	p.HobbiesAndInterestsList = append([]string{}, p.HobbiesAndInterestsList...)
	return p
}
