package embedding

import (
	"context"
	"fmt"
	"ideasystemx-go/pkg/errs"
	"strings"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

func init() {
	Register("openai", newOpenAIClient)
	Register("azure", newAzureClient)
}

// openAIClient 使用 go-openai SDK 调用 OpenAI 或 Azure OpenAI 的 Embedding 接口。
type openAIClient struct {
	client     *openai.Client
	model      string
	dimensions int
}

func newOpenAIClient(cfg Config) (Client, error) {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		config.BaseURL = cfg.Endpoint
	}
	return newSDKClient(config, cfg), nil
}

func newAzureClient(cfg Config) (Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("azure embedding provider requires an endpoint: %w", errs.ErrValidation)
	}
	return newSDKClient(openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint), cfg), nil
}

func newSDKClient(config openai.ClientConfig, cfg Config) *openAIClient {
	c := &openAIClient{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
	}
	// 只有 text-embedding-3 系列支持指定输出维度
	if strings.HasPrefix(cfg.Model, "text-embedding-3") {
		c.dimensions = cfg.Dimensions
	}
	return c
}

func (c *openAIClient) Model() string {
	return c.model
}

func (c *openAIClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(c.model),
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %v: %w", err, errs.ErrProvider)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embeddings returned: %w", errs.ErrProvider)
	}
	return resp.Data[0].Embedding, nil
}
