package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"ideasystemx-go/internal/model"
	"ideasystemx-go/pkg/embedding"
	"ideasystemx-go/pkg/errs"
	"ideasystemx-go/pkg/keywords"
	"ideasystemx-go/pkg/llm"
	"ideasystemx-go/pkg/log"
	"strings"
	"sync"
	"time"
)

// 向量来源，写入向量记录元数据的 source 字段
const (
	SourceProvider = "provider"
	SourceLocal    = "local"
)

const maxAITags = 5

// Embedding 是一次向量化的结果。
type Embedding struct {
	Vector []float32
	Model  string
	Source string
}

// Analysis 是 AI 对一条想法的分析结果。
type Analysis struct {
	Tags    []string `json:"tags"`
	Summary string   `json:"summary"`
}

// AIService 把当前设置绑定到具体的 provider，对上层提供向量化、分析、提醒建议与问答。
type AIService interface {
	Configured() bool
	Status() model.AIStatus
	Reconfigure(s model.Settings) error
	Embed(ctx context.Context, text string) (Embedding, error)
	Analyze(ctx context.Context, text string) (*Analysis, error)
	SuggestReminder(ctx context.Context, text string, now time.Time) (*model.ReminderSuggestion, error)
	Answer(ctx context.Context, query string, notes []model.Idea) (string, error)
	StreamAnswer(ctx context.Context, query string, notes []model.Idea, writer llm.MessageWriter) error
	Close() error
}

// AIOptions 配置 AIService。NewChat 与 NewEmbedder 为空时使用各包的注册表。
type AIOptions struct {
	Dimensions    int
	LocalFallback bool
	Timeout       time.Duration
	CacheSize     int64
	Generation    llm.GenerationParams

	NewChat     func(cfg llm.Config) (llm.Client, error)
	NewEmbedder func(cfg embedding.Config) (embedding.Client, error)
}

type aiService struct {
	opts  AIOptions
	local *embedding.LocalClient

	mu       sync.RWMutex
	settings model.Settings
	chat     llm.Client
	embedder embedding.Client
}

// NewAIService 创建一个尚未绑定 provider 的 AIService，调用 Reconfigure 应用设置。
func NewAIService(opts AIOptions) AIService {
	if opts.NewChat == nil {
		opts.NewChat = llm.NewClient
	}
	if opts.NewEmbedder == nil {
		opts.NewEmbedder = embedding.NewClient
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &aiService{
		opts:  opts,
		local: embedding.NewLocalClient(opts.Dimensions),
	}
}

func (s *aiService) Configured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chat != nil
}

func (s *aiService) Status() model.AIStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := model.AIStatus{
		Configured:     s.chat != nil,
		Provider:       s.settings.AIProvider,
		Model:          s.settings.Model,
		EmbeddingModel: s.settings.EmbeddingModel,
		EmbeddingLocal: s.embedder == nil,
	}
	if s.embedder == nil {
		st.EmbeddingModel = embedding.LocalModel
	}
	return st
}

// Reconfigure 根据设置重建 provider 客户端；未配置时清空客户端，只保留本地向量化。
func (s *aiService) Reconfigure(settings model.Settings) error {
	var (
		chat     llm.Client
		embedder embedding.Client
	)

	if IsConfigured(settings) {
		var err error
		chat, err = s.opts.NewChat(llm.Config{
			Provider:   settings.AIProvider,
			APIKey:     settings.APIKey,
			Model:      settings.Model,
			Endpoint:   settings.Endpoint,
			Generation: s.opts.Generation,
		})
		if err != nil {
			return fmt.Errorf("create chat client for %s: %w", settings.AIProvider, err)
		}

		if settings.EmbeddingModel != "" {
			embedder, err = s.opts.NewEmbedder(embedding.Config{
				Provider:   settings.AIProvider,
				APIKey:     settings.APIKey,
				Model:      settings.EmbeddingModel,
				Endpoint:   settings.Endpoint,
				Dimensions: s.opts.Dimensions,
			})
			switch {
			case errors.Is(err, errs.ErrProviderUnavailable):
				log.Infof("[AIService] provider %s 不提供向量化, 使用本地向量", settings.AIProvider)
				embedder = nil
			case err != nil:
				_ = llm.Close(chat)
				return fmt.Errorf("create embedding client for %s: %w", settings.AIProvider, err)
			}
		}
		if embedder != nil && s.opts.CacheSize > 0 {
			cached, err := embedding.NewCachedClient(embedder, settings.AIProvider, s.opts.CacheSize)
			if err != nil {
				log.Warnf("[AIService] 创建向量缓存失败, 不使用缓存: %v", err)
			} else {
				embedder = cached
			}
		}
	}

	s.mu.Lock()
	oldChat, oldEmbedder := s.chat, s.embedder
	s.settings = settings
	s.chat = chat
	s.embedder = embedder
	s.mu.Unlock()

	closeClients(oldChat, oldEmbedder)
	log.Infow("[AIService] AI 设置已应用",
		"provider", settings.AIProvider,
		"model", settings.Model,
		"embeddingModel", settings.EmbeddingModel,
		"configured", chat != nil,
		"localEmbedding", embedder == nil,
	)
	return nil
}

func closeClients(chat llm.Client, embedder embedding.Client) {
	if chat != nil {
		if err := llm.Close(chat); err != nil {
			log.Warnf("[AIService] 关闭 chat 客户端失败: %v", err)
		}
	}
	if embedder != nil {
		if err := embedding.Close(embedder); err != nil {
			log.Warnf("[AIService] 关闭 embedding 客户端失败: %v", err)
		}
	}
}

func (s *aiService) clients() (llm.Client, embedding.Client) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chat, s.embedder
}

// Embed 优先使用 provider 向量；provider 不可用、失败或维度不符且允许本地回退时使用本地哈希向量。
func (s *aiService) Embed(ctx context.Context, text string) (Embedding, error) {
	_, embedder := s.clients()

	if embedder != nil {
		callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		vec, err := embedder.CreateEmbedding(callCtx, text)
		cancel()
		if err == nil && len(vec) == s.opts.Dimensions {
			return Embedding{Vector: vec, Model: embedder.Model(), Source: SourceProvider}, nil
		}
		if err == nil {
			err = fmt.Errorf("embedding model %s returned %d dimensions, store expects %d: %w",
				embedder.Model(), len(vec), s.opts.Dimensions, errs.ErrDimensionMismatch)
		}
		if !s.opts.LocalFallback {
			return Embedding{}, err
		}
		log.Warnf("[AIService] provider 向量化失败, 回退到本地向量: %v", err)
	} else if !s.opts.LocalFallback {
		return Embedding{}, fmt.Errorf("no embedding provider configured: %w", errs.ErrProviderUnavailable)
	}

	vec, err := s.local.CreateEmbedding(ctx, text)
	if err != nil {
		return Embedding{}, err
	}
	return Embedding{Vector: vec, Model: s.local.Model(), Source: SourceLocal}, nil
}

func (s *aiService) chatClient() (llm.Client, error) {
	chat, _ := s.clients()
	if chat == nil {
		return nil, fmt.Errorf("AI provider not configured: %w", errs.ErrProviderUnavailable)
	}
	return chat, nil
}

func (s *aiService) complete(ctx context.Context, messages []llm.Message) (string, error) {
	chat, err := s.chatClient()
	if err != nil {
		return "", err
	}
	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	out, err := chat.Chat(callCtx, messages, nil)
	if err != nil {
		if errors.Is(err, errs.ErrProvider) {
			return "", err
		}
		return "", fmt.Errorf("%v: %w", err, errs.ErrProvider)
	}
	return out, nil
}

const analyzeSystemPrompt = `You organize a personal collection of short notes. Reply with a single JSON object and nothing else.`

const analyzeUserPrompt = `Analyze the note below.
Return JSON: {"tags": ["up to 5 short lowercase topic tags"], "summary": "one concise sentence"}.
Use the language of the note for the summary.

Note:
%s`

// Analyze 请求 AI 生成标签与摘要。
func (s *aiService) Analyze(ctx context.Context, text string) (*Analysis, error) {
	out, err := s.complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: analyzeSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf(analyzeUserPrompt, text)},
	})
	if err != nil {
		return nil, err
	}
	analysis, err := parseAnalysis(out)
	if err != nil {
		return nil, err
	}
	return analysis, nil
}

// parseAnalysis 从回复中取出 JSON 对象并规范化标签。
func parseAnalysis(raw string) (*Analysis, error) {
	body := stripCodeFence(raw)
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("analysis reply is not a JSON object: %w", errs.ErrProvider)
	}

	var a Analysis
	if err := json.Unmarshal([]byte(body[start:end+1]), &a); err != nil {
		return nil, fmt.Errorf("decode analysis reply: %v: %w", err, errs.ErrProvider)
	}
	a.Tags = model.NormalizeTags(a.Tags)
	if len(a.Tags) > maxAITags {
		a.Tags = a.Tags[:maxAITags]
	}
	a.Summary = strings.TrimSpace(a.Summary)
	return &a, nil
}

const reminderSystemPrompt = `You decide whether a personal note describes something the user must be reminded about at a specific time. Reply with a single JSON object and nothing else.`

const reminderUserPrompt = `Current time: %s

Note:
%s

Return JSON: {"needsReminder": true|false, "dueAt": "RFC 3339 timestamp or YYYY-MM-DD", "message": "short reminder text"}.
Set needsReminder to false when the note contains no task or date.`

// SuggestReminder 请求 AI 判断是否需要提醒。回复不符合约定格式时视为不需要提醒。
func (s *aiService) SuggestReminder(ctx context.Context, text string, now time.Time) (*model.ReminderSuggestion, error) {
	out, err := s.complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: reminderSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf(reminderUserPrompt, now.Format(time.RFC3339), text)},
	})
	if err != nil {
		return nil, err
	}
	suggestion, ok := parseReminderSuggestion(out, now.Location())
	if !ok {
		log.Warnf("[AIService] 提醒建议格式不符合约定, 视为无需提醒: %q", out)
		return &model.ReminderSuggestion{}, nil
	}
	return &suggestion, nil
}

// parseReminderSuggestion 严格解析提醒建议：必须是 JSON 对象，needsReminder 为布尔值；
// 需要提醒时 dueAt 必须是 RFC 3339 或 YYYY-MM-DD，message 非空。
func parseReminderSuggestion(raw string, loc *time.Location) (model.ReminderSuggestion, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &fields); err != nil {
		return model.ReminderSuggestion{}, false
	}

	var needs bool
	rawNeeds, ok := fields["needsReminder"]
	if !ok || json.Unmarshal(rawNeeds, &needs) != nil {
		return model.ReminderSuggestion{}, false
	}
	if !needs {
		return model.ReminderSuggestion{}, true
	}

	var dueText, message string
	if json.Unmarshal(fields["dueAt"], &dueText) != nil || json.Unmarshal(fields["message"], &message) != nil {
		return model.ReminderSuggestion{}, false
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return model.ReminderSuggestion{}, false
	}
	due, ok := parseDueAt(strings.TrimSpace(dueText), loc)
	if !ok {
		return model.ReminderSuggestion{}, false
	}
	return model.ReminderSuggestion{NeedsReminder: true, DueAt: due, Message: message}, true
}

// parseDueAt 接受 RFC 3339 时间戳或 YYYY-MM-DD 日期（按 loc 的 09:00 计）。
func parseDueAt(s string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if d, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return d.Add(9 * time.Hour), true
	}
	return time.Time{}, false
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

const answerSystemPrompt = `You answer questions about the user's personal notes.
Use only the notes between <<REF>> and <<END>>; cite them as [n]. If they do not contain the answer, say so briefly.`

const maxNoteSnippet = 1000

func answerMessages(query string, notes []model.Idea) []llm.Message {
	var sys strings.Builder
	sys.WriteString(answerSystemPrompt)
	sys.WriteString("\n\n<<REF>>\n")
	if len(notes) == 0 {
		sys.WriteString("（没有相关笔记）\n")
	}
	for i, n := range notes {
		snippet := n.Content
		if r := []rune(snippet); len(r) > maxNoteSnippet {
			snippet = string(r[:maxNoteSnippet]) + "…"
		}
		tags := strings.Join(n.TagNames(), ", ")
		sys.WriteString(fmt.Sprintf("[%d] (tags: %s; %s) %s\n", i+1, tags, n.CreatedAt.Format("2006-01-02"), snippet))
	}
	sys.WriteString("<<END>>")

	return []llm.Message{
		{Role: llm.RoleSystem, Content: sys.String()},
		{Role: llm.RoleUser, Content: query},
	}
}

func (s *aiService) Answer(ctx context.Context, query string, notes []model.Idea) (string, error) {
	return s.complete(ctx, answerMessages(query, notes))
}

func (s *aiService) StreamAnswer(ctx context.Context, query string, notes []model.Idea, writer llm.MessageWriter) error {
	chat, err := s.chatClient()
	if err != nil {
		return err
	}
	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	if err := chat.StreamChat(callCtx, answerMessages(query, notes), nil, writer); err != nil {
		if errors.Is(err, errs.ErrProvider) {
			return err
		}
		// 保留写入端的错误链，调用方据此区分客户端主动停止
		return fmt.Errorf("%w: %w", err, errs.ErrProvider)
	}
	return nil
}

func (s *aiService) Close() error {
	s.mu.Lock()
	chat, embedder := s.chat, s.embedder
	s.chat, s.embedder = nil, nil
	s.mu.Unlock()
	closeClients(chat, embedder)
	return nil
}

// HeuristicTags 在 AI 不可用时从内容中提取标签。
func HeuristicTags(content string) []string {
	return keywords.Extract(content, keywords.DefaultLimit)
}
