package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// Chain 是编译好的 "系统提示 + 历史 + 用户输入" 模板与聊天模型的组合。
type Chain struct {
	runnable compose.Runnable[map[string]any, *schema.Message]
}

// NewChain compiles the chat template and chatModel into a runnable chain.
func NewChain(ctx context.Context, chatModel model.BaseChatModel) (*Chain, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}
	return &Chain{runnable: runnable}, nil
}

// Invoke runs one non-streaming turn. opts are forwarded to the chat model.
func (c *Chain) Invoke(ctx context.Context, system string, history []*schema.Message, query string, opts ...model.Option) (*schema.Message, error) {
	return c.runnable.Invoke(ctx, chainInput(system, history, query), compose.WithChatModelOption(opts...))
}

// Stream runs one streaming turn. opts are forwarded to the chat model.
func (c *Chain) Stream(ctx context.Context, system string, history []*schema.Message, query string, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return c.runnable.Stream(ctx, chainInput(system, history, query), compose.WithChatModelOption(opts...))
}

func chainInput(system string, history []*schema.Message, query string) map[string]any {
	if history == nil {
		history = []*schema.Message{}
	}
	return map[string]any{
		"system":  system,
		"history": history,
		"query":   query,
	}
}
