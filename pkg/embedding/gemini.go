package embedding

import (
	"context"
	"fmt"
	"ideasystemx-go/pkg/errs"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

func init() {
	Register("gemini", newGeminiClient)
}

// geminiClient 调用 Google GenAI 的 Embedding 接口，持有的 genai.Client 需要 Close。
type geminiClient struct {
	client *genai.Client
	model  *genai.EmbeddingModel
	name   string
}

func newGeminiClient(cfg Config) (Client, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %v: %w", err, errs.ErrProvider)
	}
	return &geminiClient{
		client: client,
		model:  client.EmbeddingModel(cfg.Model),
		name:   cfg.Model,
	}, nil
}

func (c *geminiClient) Model() string {
	return c.name
}

func (c *geminiClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	res, err := c.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("failed to embed content: %v: %w", err, errs.ErrProvider)
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embeddings returned: %w", errs.ErrProvider)
	}
	return res.Embedding.Values, nil
}

func (c *geminiClient) Close() error {
	return c.client.Close()
}
