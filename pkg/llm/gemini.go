package llm

import (
	"context"
	"errors"
	"fmt"
	"ideasystemx-go/pkg/errs"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

func init() {
	Register("gemini", newGeminiClient)
}

type geminiClient struct {
	client *genai.Client
	cfg    Config
}

func newGeminiClient(cfg Config) (Client, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %v: %w", err, errs.ErrProvider)
	}
	return &geminiClient{client: client, cfg: cfg}, nil
}

// session 根据消息构造模型与会话：system 消息作为 SystemInstruction，
// 最后一条消息之前的内容作为历史。
func (c *geminiClient) session(messages []Message, gen *GenerationParams) (*genai.ChatSession, []genai.Part) {
	model := c.client.GenerativeModel(c.cfg.Model)
	system, rest := splitSystem(messages)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	gp := resolve(gen, c.cfg.Generation)
	if gp.Temperature != nil {
		model.SetTemperature(float32(*gp.Temperature))
	}
	if gp.TopP != nil {
		model.SetTopP(float32(*gp.TopP))
	}
	if gp.MaxTokens != nil {
		model.SetMaxOutputTokens(int32(*gp.MaxTokens))
	}

	cs := model.StartChat()
	if len(rest) == 0 {
		return cs, []genai.Part{genai.Text("")}
	}
	for _, m := range rest[:len(rest)-1] {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return cs, []genai.Part{genai.Text(rest[len(rest)-1].Content)}
}

func (c *geminiClient) Chat(ctx context.Context, messages []Message, gen *GenerationParams) (string, error) {
	cs, parts := c.session(messages, gen)
	resp, err := cs.SendMessage(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %v: %w", err, errs.ErrProvider)
	}
	return responseText(resp), nil
}

func (c *geminiClient) StreamChat(ctx context.Context, messages []Message, gen *GenerationParams, writer MessageWriter) error {
	cs, parts := c.session(messages, gen)
	iter := cs.SendMessageStream(ctx, parts...)
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("gemini stream failed: %v: %w", err, errs.ErrProvider)
		}
		if err := writeChunk(writer, responseText(resp)); err != nil {
			return err
		}
	}
}

func (c *geminiClient) Close() error {
	return c.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}
