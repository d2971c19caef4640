// Package aitest provides a scripted chat model for tests.
package aitest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/persona-lab/backend/internal/model/persona"
)

// Reply scripts one Generate call.
type Reply struct {
	Content string
	Err     error
}

// StreamScript scripts one Stream call. OpenErr fails the call itself; Err is
// delivered after Chunks as a mid-stream failure. Delay spaces out the chunks;
// a delayed stream stops early when its context is cancelled.
type StreamScript struct {
	Chunks  []string
	Err     error
	OpenErr error
	Delay   time.Duration
}

// Call records what the model received.
type Call struct {
	Messages []*schema.Message
	Model    string
}

// FakeModel replays scripted replies in order.
type FakeModel struct {
	mu      sync.Mutex
	replies []Reply
	streams []StreamScript
	calls   []Call

	// Hold, when set, blocks Generate until it is closed. Entered is
	// signalled once Generate starts waiting.
	Hold    chan struct{}
	Entered chan struct{}
}

var _ model.BaseChatModel = (*FakeModel)(nil)

// NewFakeModel returns a model that answers Generate with replies in order.
func NewFakeModel(replies ...Reply) *FakeModel {
	return &FakeModel{replies: replies}
}

// QueueReply appends a Generate reply.
func (f *FakeModel) QueueReply(r Reply) {
	f.mu.Lock()
	f.replies = append(f.replies, r)
	f.mu.Unlock()
}

// QueueStream appends a Stream script.
func (f *FakeModel) QueueStream(s StreamScript) {
	f.mu.Lock()
	f.streams = append(f.streams, s)
	f.mu.Unlock()
}

// Calls returns the recorded calls.
func (f *FakeModel) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func (f *FakeModel) record(input []*schema.Message, opts []model.Option) {
	common := model.GetCommonOptions(&model.Options{}, opts...)
	call := Call{Messages: append([]*schema.Message(nil), input...)}
	if common.Model != nil {
		call.Model = *common.Model
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *FakeModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.record(input, opts)

	if f.Hold != nil {
		if f.Entered != nil {
			f.Entered <- struct{}{}
		}
		select {
		case <-f.Hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	if len(f.replies) == 0 {
		f.mu.Unlock()
		return nil, errors.New("no scripted reply")
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	f.mu.Unlock()

	if r.Err != nil {
		return nil, r.Err
	}
	return schema.AssistantMessage(r.Content, nil), nil
}

func (f *FakeModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.record(input, opts)

	f.mu.Lock()
	if len(f.streams) == 0 {
		f.mu.Unlock()
		return nil, errors.New("no scripted stream")
	}
	script := f.streams[0]
	f.streams = f.streams[1:]
	f.mu.Unlock()

	if script.OpenErr != nil {
		return nil, script.OpenErr
	}

	if script.Delay > 0 {
		sr, sw := schema.Pipe[*schema.Message](0)
		go func() {
			defer sw.Close()
			for _, chunk := range script.Chunks {
				select {
				case <-ctx.Done():
					sw.Send(nil, ctx.Err())
					return
				case <-time.After(script.Delay):
				}
				if closed := sw.Send(schema.AssistantMessage(chunk, nil), nil); closed {
					return
				}
			}
			if script.Err != nil {
				sw.Send(nil, script.Err)
			}
		}()
		return sr, nil
	}

	if script.Err == nil {
		msgs := make([]*schema.Message, 0, len(script.Chunks))
		for _, chunk := range script.Chunks {
			msgs = append(msgs, schema.AssistantMessage(chunk, nil))
		}
		return schema.StreamReaderFromArray(msgs), nil
	}

	sr, sw := schema.Pipe[*schema.Message](len(script.Chunks) + 1)
	for _, chunk := range script.Chunks {
		sw.Send(schema.AssistantMessage(chunk, nil), nil)
	}
	sw.Send(nil, script.Err)
	sw.Close()
	return sr, nil
}

// SamplePersona returns a fully populated persona.
func SamplePersona() persona.Persona {
	return persona.Persona{
		Persona:                 "A meticulous, upbeat marketer who loves data-driven campaigns.",
		ProfessionalPersona:     "A mid-career marketing manager at a regional retailer.",
		SportsPersona:           "Runs half marathons and follows college basketball.",
		ArtsPersona:             "Collects vintage concert posters.",
		TravelPersona:           "Prefers long weekends in walkable cities.",
		CulinaryPersona:         "Cooks Thai food on Sundays.",
		SkillsAndExpertise:      "Campaign analytics, copywriting and team leadership.",
		SkillsAndExpertiseList:  []string{"campaign analytics", "copywriting", "team leadership"},
		HobbiesAndInterests:     "Running, poster collecting and cooking.",
		HobbiesAndInterestsList: []string{"running", "poster collecting", "cooking"},
		CareerGoalsAndAmbitions: "Become a chief marketing officer within ten years.",
	}
}

// GenerationReply renders a well formed generation reply.
func GenerationReply(commentary string, p persona.Persona) string {
	data, err := json.Marshal(map[string]any{
		"llm_response":     commentary,
		"persona_response": p,
	})
	if err != nil {
		panic(err)
	}
	return string(data)
}
