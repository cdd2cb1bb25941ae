package llm

import (
	"context"
	"fmt"
	"ideasystemx-go/pkg/errs"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 1024

func init() {
	Register("anthropic", newAnthropicClient)
}

// anthropicClient 调用 Claude Messages API。Anthropic 不提供向量化接口，只注册聊天能力。
type anthropicClient struct {
	client *anthropic.Client
	cfg    Config
}

func newAnthropicClient(cfg Config) (Client, error) {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	client := anthropic.NewClient(opts...)
	return &anthropicClient{client: &client, cfg: cfg}, nil
}

func (c *anthropicClient) params(messages []Message, gen *GenerationParams) anthropic.MessageNewParams {
	system, rest := splitSystem(messages)
	gp := resolve(gen, c.cfg.Generation)

	maxTokens := int64(defaultAnthropicMaxTokens)
	if gp.MaxTokens != nil && *gp.MaxTokens > 0 {
		maxTokens = int64(*gp.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: maxTokens,
		Messages:  make([]anthropic.MessageParam, 0, len(rest)),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if gp.Temperature != nil {
		params.Temperature = anthropic.Float(*gp.Temperature)
	}
	for _, m := range rest {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}
	return params
}

func (c *anthropicClient) Chat(ctx context.Context, messages []Message, gen *GenerationParams) (string, error) {
	resp, err := c.client.Messages.New(ctx, c.params(messages, gen))
	if err != nil {
		return "", fmt.Errorf("claude API error: %v: %w", err, errs.ErrProvider)
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

func (c *anthropicClient) StreamChat(ctx context.Context, messages []Message, gen *GenerationParams, writer MessageWriter) error {
	stream := c.client.Messages.NewStreaming(ctx, c.params(messages, gen))
	defer stream.Close()

	for stream.Next() {
		event := stream.Current()
		switch evt := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := evt.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if err := writeChunk(writer, delta.Text); err != nil {
					return err
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("claude API stream error: %v: %w", err, errs.ErrProvider)
	}
	return nil
}
