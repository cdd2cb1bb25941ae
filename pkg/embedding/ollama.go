package embedding

import (
	"context"
	"fmt"
	"ideasystemx-go/pkg/errs"
	"net/http"
	"net/url"

	ollama "github.com/ollama/ollama/api"
)

// DefaultOllamaEndpoint 是本地 Ollama 服务的默认地址。
const DefaultOllamaEndpoint = "http://localhost:11434"

func init() {
	Register("ollama", newOllamaClient)
}

type ollamaClient struct {
	client *ollama.Client
	model  string
}

func newOllamaClient(cfg Config) (Client, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultOllamaEndpoint
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama endpoint %q: %v: %w", endpoint, err, errs.ErrValidation)
	}
	// 超时由调用方的 context 控制
	return &ollamaClient{
		client: ollama.NewClient(parsed, &http.Client{}),
		model:  cfg.Model,
	}, nil
}

func (c *ollamaClient) Model() string {
	return c.model
}

func (c *ollamaClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.Embed(ctx, &ollama.EmbedRequest{
		Model: c.model,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get embeddings from ollama: %v: %w", err, errs.ErrProvider)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("no embeddings returned: %w", errs.ErrProvider)
	}
	return resp.Embeddings[0], nil
}
