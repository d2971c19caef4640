package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/persona-lab/backend/internal/model/chat"
	"github.com/zhouzirui/persona-lab/backend/internal/model/persona"
	"github.com/zhouzirui/persona-lab/backend/internal/service/ai"
)

// ErrStreamClosed is returned by Recv after Close.
var ErrStreamClosed = errors.New("reply stream closed")

// Options configures an in-character chat session.
type Options struct {
	Chain     *ai.Chain
	ModelName string
	PersonaID string
	Persona   persona.Persona
	Prompts   *ai.PromptBuilder
}

// Session is a conversation with the model acting as one persona.
type Session struct {
	chain     *ai.Chain
	modelName string
	system    string
	personaID string
	persona   persona.Persona

	turnMu sync.Mutex

	mu      sync.RWMutex
	history []*schema.Message
}

// NewSession builds the actor instructions for opts.Persona.
func NewSession(opts Options) (*Session, error) {
	if opts.Chain == nil {
		return nil, errors.New("chat chain is required")
	}
	if err := opts.Persona.Validate(); err != nil {
		return nil, err
	}

	prompts := opts.Prompts
	if prompts == nil {
		prompts = ai.NewPromptBuilder()
	}
	system, err := prompts.BuildActorPrompt(opts.Persona)
	if err != nil {
		return nil, err
	}

	return &Session{
		chain:     opts.Chain,
		modelName: opts.ModelName,
		system:    system,
		personaID: opts.PersonaID,
		persona:   opts.Persona,
	}, nil
}

func (s *Session) Persona() persona.Persona { return s.persona }

func (s *Session) PersonaID() string { return s.personaID }

func (s *Session) ModelName() string { return s.modelName }

// History returns a copy of the dialogue, starting with the actor
// instructions.
func (s *Session) History() []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chat.Message, 0, len(s.history)+1)
	out = append(out, chat.Message{Role: chat.RoleSystem, Content: s.system})
	for _, msg := range s.history {
		out = append(out, chat.Message{Role: chat.Role(msg.Role), Content: msg.Content})
	}
	return out
}

func (s *Session) snapshot() []*schema.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*schema.Message(nil), s.history...)
}

func (s *Session) appendMessages(msgs ...*schema.Message) {
	s.mu.Lock()
	s.history = append(s.history, msgs...)
	s.mu.Unlock()
}

// Turn sends message and waits for the complete reply. On failure the
// history is left exactly as before.
func (s *Session) Turn(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ai.ErrEmptyMessage
	}
	if !s.turnMu.TryLock() {
		return "", ai.ErrTurnInProgress
	}
	defer s.turnMu.Unlock()

	reply, err := s.chain.Invoke(ctx, s.system, s.snapshot(), message, ai.CallOptions(s.modelName, false)...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ai.ErrUpstream, err)
	}
	if reply == nil {
		return "", fmt.Errorf("%w: empty reply", ai.ErrUpstream)
	}

	s.appendMessages(schema.UserMessage(message), schema.AssistantMessage(reply.Content, nil))
	return reply.Content, nil
}

// StreamTurn appends message to the history and opens a streamed reply. The
// user turn stays in the history even if the stream fails. The session is
// busy until the returned stream ends or is closed.
func (s *Session) StreamTurn(ctx context.Context, message string) (*ReplyStream, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ai.ErrEmptyMessage
	}
	if !s.turnMu.TryLock() {
		return nil, ai.ErrTurnInProgress
	}

	history := s.snapshot()
	s.appendMessages(schema.UserMessage(message))

	reader, err := s.chain.Stream(ctx, s.system, history, message, ai.CallOptions(s.modelName, false)...)
	if err != nil {
		s.turnMu.Unlock()
		return nil, fmt.Errorf("%w: %w", ai.ErrUpstream, err)
	}
	return &ReplyStream{session: s, reader: reader}, nil
}

// ReplyStream yields the fragments of one streamed reply. It is not safe for
// concurrent use.
type ReplyStream struct {
	session *Session
	reader  *schema.StreamReader[*schema.Message]
	chunks  []*schema.Message
	err     error
	once    sync.Once
}

// Recv returns the next non-empty fragment. It returns io.EOF once the reply
// is complete, at which point the full reply has been added to the history.
// An upstream failure is returned wrapped in ai.ErrUpstream and leaves no
// assistant turn behind.
func (rs *ReplyStream) Recv() (string, error) {
	if rs.err != nil {
		return "", rs.err
	}

	for {
		msg, err := rs.reader.Recv()
		if errors.Is(err, io.EOF) {
			rs.complete()
			return "", io.EOF
		}
		if err != nil {
			rs.err = fmt.Errorf("%w: %w", ai.ErrUpstream, err)
			rs.release()
			log.Printf("[chat] stream aborted for persona=%s: %v", rs.session.personaID, err)
			return "", rs.err
		}
		if msg == nil {
			continue
		}
		rs.chunks = append(rs.chunks, msg)
		if msg.Content != "" {
			return msg.Content, nil
		}
	}
}

// Close abandons the stream. Nothing is added to the history.
func (rs *ReplyStream) Close() {
	if rs.err == nil {
		rs.err = ErrStreamClosed
	}
	rs.release()
}

func (rs *ReplyStream) complete() {
	reply := schema.AssistantMessage("", nil)
	if len(rs.chunks) > 0 {
		merged, err := schema.ConcatMessages(rs.chunks)
		if err != nil {
			// fall back to plain text concatenation
			var b strings.Builder
			for _, chunk := range rs.chunks {
				b.WriteString(chunk.Content)
			}
			merged = schema.AssistantMessage(b.String(), nil)
		}
		reply = schema.AssistantMessage(merged.Content, nil)
	}

	rs.session.appendMessages(reply)
	rs.err = io.EOF
	rs.release()
}

func (rs *ReplyStream) release() {
	rs.once.Do(func() {
		rs.reader.Close()
		rs.session.turnMu.Unlock()
	})
}
