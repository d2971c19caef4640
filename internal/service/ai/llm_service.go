package ai

import (
	"context"
	"fmt"
	"log"
	"slices"

	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/persona-lab/backend/internal/config"
	aiopenai "github.com/zhouzirui/persona-lab/backend/internal/service/ai/openai"
)

// Service owns the compiled chat chain and the catalogue of model names a
// session may select.
type Service struct {
	chain *Chain
	cfg   config.AIConfig
}

// NewService creates a new AI service instance
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	svc, err := NewServiceWithModel(ctx, chatModel, cfg)
	if err != nil {
		return nil, err
	}
	log.Printf("[ai] provider=%s default model=%s", cfg.Provider, cfg.DefaultModel)
	return svc, nil
}

// NewServiceWithModel compiles the chat chain around an already constructed
// chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, cfg config.AIConfig) (*Service, error) {
	chain, err := NewChain(ctx, chatModel)
	if err != nil {
		return nil, err
	}
	return &Service{chain: chain, cfg: cfg}, nil
}

// Chain 返回编译好的聊天链
func (s *Service) Chain() *Chain {
	return s.chain
}

// Models lists the selectable model names.
func (s *Service) Models() []string {
	return append([]string(nil), s.cfg.Models...)
}

// DefaultModel returns the model used when a caller does not pick one.
func (s *Service) DefaultModel() string {
	return s.cfg.DefaultModel
}

// ResolveModel maps an empty name to the default and rejects names outside
// the catalogue.
func (s *Service) ResolveModel(name string) (string, error) {
	if name == "" {
		return s.cfg.DefaultModel, nil
	}
	if len(s.cfg.Models) > 0 && !slices.Contains(s.cfg.Models, name) {
		return "", fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return name, nil
}

// CallOptions returns the per-call options selecting modelName. jsonMode
// requests a JSON object response from providers that support it.
func CallOptions(modelName string, jsonMode bool) []model.Option {
	opts := make([]model.Option, 0, 2)
	if modelName != "" {
		opts = append(opts, model.WithModel(modelName))
	}
	if jsonMode {
		opts = append(opts, aiopenai.WithJSONResponse())
	}
	return opts
}
