package llm

import (
	"context"
	"errors"
	"fmt"
	"ideasystemx-go/pkg/errs"
	"io"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

func init() {
	Register("openai", newOpenAIClient)
	Register("azure", newAzureClient)
}

// openAIClient 使用 go-openai SDK，同时服务 OpenAI 与 Azure OpenAI。
type openAIClient struct {
	client *openai.Client
	cfg    Config
}

func newOpenAIClient(cfg Config) (Client, error) {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		config.BaseURL = cfg.Endpoint
	}
	return &openAIClient{client: openai.NewClientWithConfig(config), cfg: cfg}, nil
}

func newAzureClient(cfg Config) (Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("azure llm provider requires an endpoint: %w", errs.ErrValidation)
	}
	config := openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
	return &openAIClient{client: openai.NewClientWithConfig(config), cfg: cfg}, nil
}

func (c *openAIClient) request(messages []Message, gen *GenerationParams) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:    c.cfg.Model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	params := resolve(gen, c.cfg.Generation)
	if params.Temperature != nil {
		temperature := float32(*params.Temperature)
		req.Temperature = &temperature
	}
	if params.TopP != nil {
		req.TopP = float32(*params.TopP)
	}
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}
	return req
}

func (c *openAIClient) Chat(ctx context.Context, messages []Message, gen *GenerationParams) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.request(messages, gen))
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %v: %w", err, errs.ErrProvider)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices: %w", errs.ErrProvider)
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *openAIClient) StreamChat(ctx context.Context, messages []Message, gen *GenerationParams, writer MessageWriter) error {
	req := c.request(messages, gen)
	req.Stream = true
	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to create chat completion stream: %v: %w", err, errs.ErrProvider)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read chat completion stream: %v: %w", err, errs.ErrProvider)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if err := writeChunk(writer, resp.Choices[0].Delta.Content); err != nil {
			return err
		}
	}
}
