package llm

import (
	"context"
	"fmt"
	"ideasystemx-go/pkg/errs"
	"net/http"
	"net/url"
	"strings"

	ollama "github.com/ollama/ollama/api"
)

const defaultOllamaEndpoint = "http://localhost:11434"

func init() {
	Register("ollama", newOllamaClient)
}

type ollamaClient struct {
	client *ollama.Client
	cfg    Config
}

func newOllamaClient(cfg Config) (Client, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultOllamaEndpoint
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama endpoint %q: %v: %w", endpoint, err, errs.ErrValidation)
	}
	return &ollamaClient{client: ollama.NewClient(parsed, &http.Client{}), cfg: cfg}, nil
}

func (c *ollamaClient) request(messages []Message, gen *GenerationParams, stream bool) *ollama.ChatRequest {
	req := &ollama.ChatRequest{
		Model:    c.cfg.Model,
		Messages: make([]ollama.Message, 0, len(messages)),
		Stream:   &stream,
		Options:  map[string]interface{}{},
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, ollama.Message{Role: m.Role, Content: m.Content})
	}
	gp := resolve(gen, c.cfg.Generation)
	if gp.Temperature != nil {
		req.Options["temperature"] = *gp.Temperature
	}
	if gp.TopP != nil {
		req.Options["top_p"] = *gp.TopP
	}
	if gp.MaxTokens != nil {
		req.Options["num_predict"] = *gp.MaxTokens
	}
	return req
}

func (c *ollamaClient) Chat(ctx context.Context, messages []Message, gen *GenerationParams) (string, error) {
	var sb strings.Builder
	err := c.client.Chat(ctx, c.request(messages, gen, false), func(resp ollama.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat failed: %v: %w", err, errs.ErrProvider)
	}
	return sb.String(), nil
}

func (c *ollamaClient) StreamChat(ctx context.Context, messages []Message, gen *GenerationParams, writer MessageWriter) error {
	var writeErr error
	err := c.client.Chat(ctx, c.request(messages, gen, true), func(resp ollama.ChatResponse) error {
		if err := writeChunk(writer, resp.Message.Content); err != nil {
			writeErr = err
			return err
		}
		return nil
	})
	if writeErr != nil {
		return writeErr
	}
	if err != nil {
		return fmt.Errorf("ollama chat stream failed: %v: %w", err, errs.ErrProvider)
	}
	return nil
}
