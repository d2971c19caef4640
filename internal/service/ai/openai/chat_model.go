// Package openai adapts the OpenAI chat completions API to eino's chat model
// interface.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	goopenai "github.com/sashabaranov/go-openai"
)

// Config describes an OpenAI-compatible endpoint.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float32
	TopP        *float32
	MaxTokens   *int
}

type options struct {
	jsonMode bool
}

// WithJSONResponse asks the endpoint to return a single JSON object.
func WithJSONResponse() model.Option {
	return model.WrapImplSpecificOptFn(func(o *options) {
		o.jsonMode = true
	})
}

// ChatModel implements model.BaseChatModel on top of go-openai.
type ChatModel struct {
	client *goopenai.Client
	cfg    Config
}

var _ model.BaseChatModel = (*ChatModel)(nil)

// NewChatModel creates an OpenAI backed chat model.
func NewChatModel(_ context.Context, cfg Config) (*ChatModel, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai model is required")
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &ChatModel{
		client: goopenai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}, nil
}

func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	req := m.buildRequest(input, opts...)

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai chat completion returned no choices")
	}

	return schema.AssistantMessage(resp.Choices[0].Message.Content, nil), nil
}

func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	req := m.buildRequest(input, opts...)
	req.Stream = true

	stream, err := m.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion stream: %w", err)
	}

	sr, sw := schema.Pipe[*schema.Message](8)
	go func() {
		defer stream.Close()
		defer sw.Close()

		for {
			resp, recvErr := stream.Recv()
			if errors.Is(recvErr, io.EOF) {
				return
			}
			if recvErr != nil {
				sw.Send(nil, fmt.Errorf("openai stream: %w", recvErr))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}

			chunk := &schema.Message{
				Role:    schema.Assistant,
				Content: resp.Choices[0].Delta.Content,
			}
			if closed := sw.Send(chunk, nil); closed {
				return
			}
		}
	}()

	return sr, nil
}

func (m *ChatModel) buildRequest(input []*schema.Message, opts ...model.Option) goopenai.ChatCompletionRequest {
	common := model.GetCommonOptions(&model.Options{
		Model:       &m.cfg.Model,
		Temperature: m.cfg.Temperature,
		TopP:        m.cfg.TopP,
		MaxTokens:   m.cfg.MaxTokens,
	}, opts...)
	specific := model.GetImplSpecificOptions(&options{}, opts...)

	req := goopenai.ChatCompletionRequest{
		Model:    m.cfg.Model,
		Messages: make([]goopenai.ChatCompletionMessage, 0, len(input)),
	}
	if common.Model != nil && *common.Model != "" {
		req.Model = *common.Model
	}
	if common.Temperature != nil {
		req.Temperature = *common.Temperature
	}
	if common.TopP != nil {
		req.TopP = *common.TopP
	}
	if common.MaxTokens != nil {
		req.MaxTokens = *common.MaxTokens
	}
	if len(common.Stop) > 0 {
		req.Stop = common.Stop
	}
	if specific.jsonMode {
		req.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	for _, msg := range input {
		if msg == nil {
			continue
		}
		req.Messages = append(req.Messages, goopenai.ChatCompletionMessage{
			Role:    toOpenAIRole(msg.Role),
			Content: msg.Content,
		})
	}
	return req
}

func toOpenAIRole(role schema.RoleType) string {
	switch role {
	case schema.System:
		return goopenai.ChatMessageRoleSystem
	case schema.Assistant:
		return goopenai.ChatMessageRoleAssistant
	case schema.Tool:
		return goopenai.ChatMessageRoleTool
	default:
		return goopenai.ChatMessageRoleUser
	}
}
