package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"ideasystemx-go/pkg/errs"
	"io"
	"net/http"
	"strings"
)

func init() {
	Register("compatible", newCompatibleClient)
}

// compatibleClient 直接调用 OpenAI 兼容的 /chat/completions 接口（DeepSeek 等），流式响应按 SSE 解析。
type compatibleClient struct {
	cfg    Config
	client *http.Client
}

func newCompatibleClient(cfg Config) (Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("compatible llm provider requires an endpoint: %w", errs.ErrValidation)
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &compatibleClient{
		cfg:    cfg,
		client: &http.Client{},
	}, nil
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c *compatibleClient) Chat(ctx context.Context, messages []Message, gen *GenerationParams) (string, error) {
	resp, err := c.do(ctx, messages, gen, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %v: %w", err, errs.ErrProvider)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chat api returned no choices: %w", errs.ErrProvider)
	}
	return out.Choices[0].Message.Content, nil
}

func (c *compatibleClient) StreamChat(ctx context.Context, messages []Message, gen *GenerationParams, writer MessageWriter) error {
	resp, err := c.do(ctx, messages, gen, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read from stream: %v: %w", err, errs.ErrProvider)
		}

		if strings.HasPrefix(line, "data: ") {
			data := strings.TrimPrefix(line, "data: ")
			if strings.TrimSpace(data) == "[DONE]" {
				break
			}

			var chunk chatResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}

			if len(chunk.Choices) > 0 {
				if err := writeChunk(writer, chunk.Choices[0].Delta.Content); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (c *compatibleClient) do(ctx context.Context, messages []Message, gen *GenerationParams, stream bool) (*http.Response, error) {
	params := resolve(gen, c.cfg.Generation)
	reqBody := chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Stream:      stream,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		MaxTokens:   params.MaxTokens,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call chat api: %v: %w", err, errs.ErrProvider)
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("chat api returned non-200 status: %s, body: %s: %w", resp.Status, string(bodyBytes), errs.ErrProvider)
	}
	return resp, nil
}
