package service

import (
	"context"
	"errors"
	"ideasystemx-go/internal/model"
	"ideasystemx-go/internal/repository"
	"ideasystemx-go/pkg/database"
	"ideasystemx-go/pkg/embedding"
	"ideasystemx-go/pkg/errs"
	"ideasystemx-go/pkg/llm"
	"ideasystemx-go/pkg/secret"
	"ideasystemx-go/pkg/vectordb"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testDims = 8

var testNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

// stubChat 按系统提示区分分析、提醒与问答请求。
type stubChat struct {
	analysis string
	reminder string
	answer   string
	err      error

	mu    sync.Mutex
	calls int
}

func (c *stubChat) reply(messages []llm.Message) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	switch {
	case messages[0].Content == analyzeSystemPrompt:
		return c.analysis, nil
	case messages[0].Content == reminderSystemPrompt:
		return c.reminder, nil
	default:
		return c.answer, nil
	}
}

func (c *stubChat) Chat(_ context.Context, messages []llm.Message, _ *llm.GenerationParams) (string, error) {
	return c.reply(messages)
}

func (c *stubChat) StreamChat(_ context.Context, messages []llm.Message, _ *llm.GenerationParams, w llm.MessageWriter) error {
	out, err := c.reply(messages)
	if err != nil {
		return err
	}
	for _, part := range strings.SplitAfter(out, " ") {
		if err := w.WriteMessage(websocket.TextMessage, []byte(part)); err != nil {
			return err
		}
	}
	return nil
}

type stubEmbedder struct {
	embed func(text string) ([]float32, error)
}

func (e *stubEmbedder) Model() string { return "stub-embed" }

func (e *stubEmbedder) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	return e.embed(text)
}

// topicVectors 把含 coffee 的文本映射到同一方向，其它文本映射到正交方向。
func topicVectors(text string) ([]float32, error) {
	v := make([]float32, testDims)
	if strings.Contains(text, "coffee") {
		v[0] = 1
	} else {
		v[1] = 1
	}
	return v, nil
}

type chunkRecorder struct {
	chunks []string
}

func (r *chunkRecorder) WriteMessage(_ int, data []byte) error {
	r.chunks = append(r.chunks, string(data))
	return nil
}

type fixture struct {
	db        *gorm.DB
	ideas     repository.IdeaRepository
	reminders repository.ReminderRepository
	store     *vectordb.Store
	ai        AIService
	svc       IdeaService
}

func configuredSettings() model.Settings {
	return model.Settings{AIProvider: "openai", APIKey: "sk-test-1234567890", Model: "gpt-test", EmbeddingModel: "stub-embed"}
}

// newFixture 创建测试环境；chat 为 nil 时 AI 保持未配置。
func newFixture(t *testing.T, chat *stubChat, embedder *stubEmbedder, localFallback bool) *fixture {
	t.Helper()
	dir := t.TempDir()

	db, err := database.OpenSQLite(filepath.Join(dir, "ideas.db"), nil)
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	store, err := vectordb.Open(filepath.Join(dir, "vector_db"), testDims)
	require.NoError(t, err)

	ai := NewAIService(AIOptions{
		Dimensions:    testDims,
		LocalFallback: localFallback,
		Timeout:       time.Second,
		NewChat: func(llm.Config) (llm.Client, error) {
			return chat, nil
		},
		NewEmbedder: func(embedding.Config) (embedding.Client, error) {
			if embedder == nil {
				return nil, errs.ErrProviderUnavailable
			}
			return embedder, nil
		},
	})
	if chat != nil {
		require.NoError(t, ai.Reconfigure(configuredSettings()))
	}
	t.Cleanup(func() { _ = ai.Close() })

	f := &fixture{
		db:        db,
		ideas:     repository.NewIdeaRepository(db),
		reminders: repository.NewReminderRepository(db),
		store:     store,
		ai:        ai,
	}
	f.svc = NewIdeaService(f.ideas, f.reminders, store, ai, IdeaOptions{
		RelatedThreshold:      0.75,
		LocalRelatedThreshold: 0.3,
		RelatedLimit:          5,
		AutoReminder:          true,
		Now:                   func() time.Time { return testNow },
	})
	return f
}

func TestHeuristicTags_FrequencyThenFirstOccurrence(t *testing.T) {
	assert.Equal(t, []string{"milk", "buy", "tomorrow"}, HeuristicTags("buy buy milk milk milk tomorrow"))
}

func TestCreateIdea_WithoutAI(t *testing.T) {
	f := newFixture(t, nil, nil, true)
	ctx := context.Background()

	res, err := f.svc.CreateIdea(ctx, "  buy buy milk milk milk tomorrow  ", nil)
	require.NoError(t, err)

	assert.Equal(t, "buy buy milk milk milk tomorrow", res.Idea.Content)
	assert.Equal(t, []string{"milk", "buy", "tomorrow"}, res.Idea.Tags)
	assert.Nil(t, res.Idea.Summary)
	assert.Nil(t, res.Reminder)
	assert.True(t, res.Embedded)
	assert.False(t, res.Analyzed)
	assert.Empty(t, res.Related)

	require.NotNil(t, res.Idea.VectorID)
	rec, ok := f.store.Get(*res.Idea.VectorID)
	require.True(t, ok)
	assert.Equal(t, embedding.LocalModel, rec.Metadata["model"])
	assert.Equal(t, SourceLocal, rec.Metadata["source"])
}

func TestCreateIdea_BlankContent(t *testing.T) {
	f := newFixture(t, nil, nil, true)
	_, err := f.svc.CreateIdea(context.Background(), " \n ", []string{"x"})
	require.ErrorIs(t, err, errs.ErrValidation)

	all, err := f.svc.ListIdeas(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateIdea_WithAI(t *testing.T) {
	chat := &stubChat{
		analysis: "```json\n{\"tags\": [\"Groceries\"], \"summary\": \"Buy milk.\"}\n```",
		reminder: `{"needsReminder": true, "dueAt": "2026-10-18", "message": "Buy milk"}`,
	}
	f := newFixture(t, chat, &stubEmbedder{embed: topicVectors}, true)

	res, err := f.svc.CreateIdea(context.Background(), "buy milk tomorrow", []string{"Home"})
	require.NoError(t, err)

	assert.True(t, res.Analyzed)
	assert.Equal(t, []string{"home", "groceries"}, res.Idea.Tags)
	require.NotNil(t, res.Idea.Summary)
	assert.Equal(t, "Buy milk.", *res.Idea.Summary)

	require.NotNil(t, res.Reminder)
	assert.Equal(t, "Buy milk", res.Reminder.Message)
	assert.True(t, res.Reminder.DueAt.Equal(time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)))

	rec, ok := f.store.Get(vectorKey(res.Idea.ID))
	require.True(t, ok)
	assert.Equal(t, "stub-embed", rec.Metadata["model"])
	assert.Equal(t, SourceProvider, rec.Metadata["source"])
}

func TestCreateIdea_AIFailureNeverFails(t *testing.T) {
	chat := &stubChat{err: errors.New("boom")}
	failing := &stubEmbedder{embed: func(string) ([]float32, error) { return nil, errors.New("down") }}

	f := newFixture(t, chat, failing, true)
	res, err := f.svc.CreateIdea(context.Background(), "buy buy milk milk milk tomorrow", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"milk", "buy", "tomorrow"}, res.Idea.Tags)
	assert.Nil(t, res.Reminder)
	assert.True(t, res.Embedded)
	rec, ok := f.store.Get(vectorKey(res.Idea.ID))
	require.True(t, ok)
	assert.Equal(t, SourceLocal, rec.Metadata["source"])

	// 不允许本地回退时想法仍然保存，只是没有向量
	f = newFixture(t, chat, failing, false)
	res, err = f.svc.CreateIdea(context.Background(), "water the plants", nil)
	require.NoError(t, err)
	assert.False(t, res.Embedded)
	assert.Nil(t, res.Idea.VectorID)
	_, ok = f.store.Get(vectorKey(res.Idea.ID))
	assert.False(t, ok)
}

func TestCreateIdea_DimensionMismatchFallsBackToLocal(t *testing.T) {
	short := &stubEmbedder{embed: func(string) ([]float32, error) { return []float32{1, 2, 3}, nil }}
	f := newFixture(t, &stubChat{analysis: `{"tags":["a"],"summary":""}`, reminder: `{"needsReminder":false}`}, short, true)

	res, err := f.svc.CreateIdea(context.Background(), "some note", nil)
	require.NoError(t, err)
	require.True(t, res.Embedded)

	rec, ok := f.store.Get(vectorKey(res.Idea.ID))
	require.True(t, ok)
	assert.Len(t, rec.Vector, testDims)
	assert.Equal(t, embedding.LocalModel, rec.Metadata["model"])
}

func TestCreateIdea_RelatedExcludesSelf(t *testing.T) {
	chat := &stubChat{analysis: `{"tags":["drink"],"summary":"s"}`, reminder: `{"needsReminder":false}`}
	f := newFixture(t, chat, &stubEmbedder{embed: topicVectors}, true)
	ctx := context.Background()

	first, err := f.svc.CreateIdea(ctx, "coffee beans", nil)
	require.NoError(t, err)
	_, err = f.svc.CreateIdea(ctx, "tea leaves", nil)
	require.NoError(t, err)
	third, err := f.svc.CreateIdea(ctx, "coffee grinder", nil)
	require.NoError(t, err)

	require.Len(t, third.Related, 1)
	assert.Equal(t, first.Idea.ID, third.Related[0].Idea.ID)
	assert.InDelta(t, 1.0, third.Related[0].Similarity, 1e-6)

	related, err := f.svc.FindRelated(ctx, first.Idea.ID, 0)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, third.Idea.ID, related[0].Idea.ID)
}

func TestFindRelated_SkipsUnresolvableAndMissing(t *testing.T) {
	f := newFixture(t, nil, nil, true)
	ctx := context.Background()

	res, err := f.svc.CreateIdea(ctx, "coffee beans roast", nil)
	require.NoError(t, err)

	// 指向不存在想法的向量被跳过
	rec, _ := f.store.Get(vectorKey(res.Idea.ID))
	_, err = f.store.Put("999", rec.Vector, map[string]interface{}{"model": embedding.LocalModel})
	require.NoError(t, err)

	related, err := f.svc.FindRelated(ctx, res.Idea.ID, 5)
	require.NoError(t, err)
	assert.Empty(t, related)

	_, err = f.svc.FindRelated(ctx, 12345, 5)
	require.ErrorIs(t, err, errs.ErrNotFound)

	// 没有向量的想法返回空列表
	_, err = f.store.Delete(vectorKey(res.Idea.ID))
	require.NoError(t, err)
	related, err = f.svc.FindRelated(ctx, res.Idea.ID, 5)
	require.NoError(t, err)
	assert.Empty(t, related)
}

func TestDeleteIdea(t *testing.T) {
	f := newFixture(t, nil, nil, true)
	ctx := context.Background()

	res, err := f.svc.CreateIdea(ctx, "delete me soon", nil)
	require.NoError(t, err)
	_, err = f.reminders.Create(ctx, res.Idea.ID, testNow, "soon")
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteIdea(ctx, res.Idea.ID))
	_, ok := f.store.Get(vectorKey(res.Idea.ID))
	assert.False(t, ok)

	_, err = f.svc.GetIdea(ctx, res.Idea.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
	reminders, err := f.reminders.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, reminders)

	require.ErrorIs(t, f.svc.DeleteIdea(ctx, res.Idea.ID), errs.ErrNotFound)
}

func TestUpdateIdea_ReembedsOnContentChange(t *testing.T) {
	f := newFixture(t, &stubChat{analysis: `{"tags":["x"]}`, reminder: `{"needsReminder":false}`},
		&stubEmbedder{embed: topicVectors}, true)
	ctx := context.Background()

	res, err := f.svc.CreateIdea(ctx, "tea time", nil)
	require.NoError(t, err)
	before, _ := f.store.Get(vectorKey(res.Idea.ID))
	assert.Equal(t, float32(1), before.Vector[1])

	content := "coffee time"
	tags := []string{"Morning"}
	updated, err := f.svc.UpdateIdea(ctx, res.Idea.ID, UpdateIdeaInput{Content: &content, Tags: &tags})
	require.NoError(t, err)
	assert.Equal(t, "coffee time", updated.Content)
	assert.Equal(t, []string{"morning"}, updated.Tags)

	after, _ := f.store.Get(vectorKey(res.Idea.ID))
	assert.Equal(t, float32(1), after.Vector[0])

	blank := "  "
	_, err = f.svc.UpdateIdea(ctx, res.Idea.ID, UpdateIdeaInput{Content: &blank})
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = f.svc.UpdateIdea(ctx, 999, UpdateIdeaInput{Content: &content})
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUpdateIdea_FailedReembedDropsStaleVector(t *testing.T) {
	embedder := &stubEmbedder{embed: func(text string) ([]float32, error) {
		if strings.Contains(text, "broken") {
			return nil, errors.New("down")
		}
		return topicVectors(text)
	}}
	f := newFixture(t, &stubChat{analysis: `{"tags":["x"]}`, reminder: `{"needsReminder":false}`}, embedder, false)
	ctx := context.Background()

	res, err := f.svc.CreateIdea(ctx, "tea time", nil)
	require.NoError(t, err)
	require.NotNil(t, res.Idea.VectorID)

	content := "broken tea time"
	updated, err := f.svc.UpdateIdea(ctx, res.Idea.ID, UpdateIdeaInput{Content: &content})
	require.NoError(t, err)
	assert.Nil(t, updated.VectorID)

	_, ok := f.store.Get(vectorKey(res.Idea.ID))
	assert.False(t, ok)
	got, err := f.svc.GetIdea(ctx, res.Idea.ID)
	require.NoError(t, err)
	assert.Nil(t, got.VectorID)

	related, err := f.svc.FindRelated(ctx, res.Idea.ID, 5)
	require.NoError(t, err)
	assert.Empty(t, related)
}

func TestSemanticSearch(t *testing.T) {
	f := newFixture(t, &stubChat{analysis: `{"tags":["x"]}`, reminder: `{"needsReminder":false}`},
		&stubEmbedder{embed: topicVectors}, true)
	ctx := context.Background()

	coffee, err := f.svc.CreateIdea(ctx, "coffee beans", nil)
	require.NoError(t, err)
	_, err = f.svc.CreateIdea(ctx, "tea leaves", nil)
	require.NoError(t, err)

	hits, err := f.svc.SemanticSearch(ctx, "coffee", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, coffee.Idea.ID, hits[0].Idea.ID)

	_, err = f.svc.SemanticSearch(ctx, " ", 10)
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestSemanticSearch_DegradesToEmpty(t *testing.T) {
	failing := &stubEmbedder{embed: func(string) ([]float32, error) { return nil, errors.New("down") }}
	f := newFixture(t, &stubChat{}, failing, false)

	hits, err := f.svc.SemanticSearch(context.Background(), "anything", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestAnalyzeIdea(t *testing.T) {
	f := newFixture(t, nil, nil, true)
	ctx := context.Background()
	idea, err := f.ideas.Create(ctx, "milk milk bread", []string{"food"})
	require.NoError(t, err)

	dto, err := f.svc.AnalyzeIdea(ctx, idea.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"food", "milk", "bread"}, dto.Tags)

	_, err = f.svc.AnalyzeIdea(ctx, 999)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestSuggestReminder_Manual(t *testing.T) {
	f := newFixture(t, nil, nil, true)
	ctx := context.Background()
	idea, err := f.ideas.Create(ctx, "dentist on friday", nil)
	require.NoError(t, err)

	_, err = f.svc.SuggestReminder(ctx, idea.ID)
	require.ErrorIs(t, err, errs.ErrProviderUnavailable)

	chat := &stubChat{reminder: `{"needsReminder":true,"dueAt":"2026-10-23T08:30:00Z","message":"Dentist"}`}
	f = newFixture(t, chat, nil, true)
	idea, err = f.ideas.Create(ctx, "dentist on friday", nil)
	require.NoError(t, err)
	res, err := f.svc.SuggestReminder(ctx, idea.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Reminder)
	assert.True(t, res.Suggestion.NeedsReminder)
	assert.Equal(t, "Dentist", res.Reminder.Message)

	chat.err = errors.New("rate limited")
	_, err = f.svc.SuggestReminder(ctx, idea.ID)
	require.ErrorIs(t, err, errs.ErrProvider)
}

func TestAnswer(t *testing.T) {
	f := newFixture(t, nil, nil, true)
	_, err := f.svc.Answer(context.Background(), "what about coffee?")
	require.ErrorIs(t, err, errs.ErrProviderUnavailable)

	chat := &stubChat{analysis: `{"tags":["x"]}`, reminder: `{"needsReminder":false}`, answer: "You like coffee [1]"}
	f = newFixture(t, chat, &stubEmbedder{embed: topicVectors}, true)
	ctx := context.Background()
	coffee, err := f.svc.CreateIdea(ctx, "coffee beans", nil)
	require.NoError(t, err)

	res, err := f.svc.Answer(ctx, "coffee?")
	require.NoError(t, err)
	assert.Equal(t, "You like coffee [1]", res.Answer)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, coffee.Idea.ID, res.Sources[0].ID)

	rec := &chunkRecorder{}
	sources, err := f.svc.StreamAnswer(ctx, "coffee?", rec)
	require.NoError(t, err)
	assert.Len(t, sources, 1)
	assert.Equal(t, "You like coffee [1]", strings.Join(rec.chunks, ""))
}

func TestReindex_RemovesOrphans(t *testing.T) {
	f := newFixture(t, nil, nil, true)
	ctx := context.Background()

	_, err := f.ideas.Create(ctx, "no vector yet", nil)
	require.NoError(t, err)
	_, err = f.store.Put("999", make([]float32, testDims), nil)
	require.NoError(t, err)

	res, err := f.svc.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Embedded)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, 1, f.store.Count())
}

func TestAIService_StatusAndChatOnlyProvider(t *testing.T) {
	ai := NewAIService(AIOptions{
		Dimensions:    testDims,
		LocalFallback: true,
		NewChat:       func(llm.Config) (llm.Client, error) { return &stubChat{}, nil },
		NewEmbedder: func(cfg embedding.Config) (embedding.Client, error) {
			return nil, errs.ErrProviderUnavailable
		},
	})

	st := ai.Status()
	assert.False(t, st.Configured)
	assert.True(t, st.EmbeddingLocal)
	assert.Equal(t, embedding.LocalModel, st.EmbeddingModel)

	_, err := ai.Analyze(context.Background(), "x")
	require.ErrorIs(t, err, errs.ErrProviderUnavailable)

	require.NoError(t, ai.Reconfigure(model.Settings{AIProvider: "anthropic", APIKey: "k", Model: "claude", EmbeddingModel: "none"}))
	st = ai.Status()
	assert.True(t, st.Configured)
	assert.True(t, st.EmbeddingLocal)

	emb, err := ai.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, emb.Source)

	// 缺少 key 视为未配置
	require.NoError(t, ai.Reconfigure(model.Settings{AIProvider: "openai", Model: "gpt"}))
	assert.False(t, ai.Configured())
}

func TestAIService_NoFallbackWithoutProvider(t *testing.T) {
	ai := NewAIService(AIOptions{Dimensions: testDims})
	_, err := ai.Embed(context.Background(), "x")
	require.ErrorIs(t, err, errs.ErrProviderUnavailable)
}

func TestParseReminderSuggestion(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		ok    bool
		needs bool
	}{
		{"negative", `{"needsReminder": false}`, true, false},
		{"rfc3339", `{"needsReminder": true, "dueAt": "2026-10-20T10:00:00+08:00", "message": "call"}`, true, true},
		{"date only in fence", "```json\n{\"needsReminder\": true, \"dueAt\": \"2026-10-20\", \"message\": \"call\"}\n```", true, true},
		{"missing flag", `{"dueAt": "2026-10-20", "message": "call"}`, false, false},
		{"flag as string", `{"needsReminder": "yes", "dueAt": "2026-10-20", "message": "call"}`, false, false},
		{"missing date", `{"needsReminder": true, "message": "call"}`, false, false},
		{"bad date", `{"needsReminder": true, "dueAt": "next week", "message": "call"}`, false, false},
		{"empty message", `{"needsReminder": true, "dueAt": "2026-10-20", "message": "  "}`, false, false},
		{"prose", `Sure! You should be reminded tomorrow.`, false, false},
		{"array", `[true]`, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseReminderSuggestion(tc.raw, time.UTC)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.needs, got.NeedsReminder)
			if tc.needs {
				assert.False(t, got.DueAt.IsZero())
				assert.Equal(t, "call", got.Message)
			}
		})
	}
}

func TestParseAnalysis(t *testing.T) {
	a, err := parseAnalysis("Here you go:\n{\"tags\": [\" Go \", \"go\", \"A\", \"b\", \"c\", \"d\", \"e\"], \"summary\": \" short \"}")
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "a", "b", "c", "d"}, a.Tags)
	assert.Equal(t, "short", a.Summary)

	_, err = parseAnalysis("no json here")
	require.ErrorIs(t, err, errs.ErrProvider)
}

func TestReminderService(t *testing.T) {
	f := newFixture(t, nil, nil, true)
	ctx := context.Background()
	svc := NewReminderService(f.reminders, f.ideas, func() time.Time { return testNow })

	idea, err := f.ideas.Create(ctx, "pay rent", nil)
	require.NoError(t, err)

	_, err = svc.AddReminder(ctx, idea.ID, testNow, " ")
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = svc.AddReminder(ctx, idea.ID, time.Time{}, "pay")
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = svc.AddReminder(ctx, 999, testNow, "pay")
	require.ErrorIs(t, err, errs.ErrNotFound)

	due, err := svc.AddReminder(ctx, idea.ID, testNow.Add(-time.Hour), "pay rent")
	require.NoError(t, err)
	_, err = svc.AddReminder(ctx, idea.ID, testNow.Add(24*time.Hour), "again")
	require.NoError(t, err)

	pending, err := svc.PendingReminders(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, due.ID, pending[0].ID)

	require.NoError(t, svc.CompleteReminder(ctx, due.ID))
	pending, err = svc.PendingReminders(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.ErrorIs(t, svc.CompleteReminder(ctx, 999), errs.ErrNotFound)

	all, err := svc.ListIdeaReminders(ctx, idea.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	_, err = svc.ListIdeaReminders(ctx, 999)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestSettingsService(t *testing.T) {
	f := newFixture(t, nil, nil, true)
	ctx := context.Background()
	ai := NewAIService(AIOptions{
		Dimensions:    testDims,
		LocalFallback: true,
		NewChat:       func(llm.Config) (llm.Client, error) { return &stubChat{}, nil },
		NewEmbedder:   func(embedding.Config) (embedding.Client, error) { return &stubEmbedder{embed: topicVectors}, nil },
	})
	repo := repository.NewSettingsRepository(f.db, model.Settings{})
	svc := NewSettingsService(repo, ai, secret.New("test-secret"))

	got, err := svc.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Settings{}, *got)

	invalid := []model.Settings{
		{AIProvider: "nope", APIKey: "k", Model: "m"},
		{AIProvider: "openai", Model: "m"},
		{AIProvider: "openai", APIKey: "k"},
		{AIProvider: "azure", APIKey: "k", Model: "m"},
	}
	for _, s := range invalid {
		_, err := svc.SaveSettings(ctx, s)
		require.ErrorIs(t, err, errs.ErrValidation, "%+v", s)
	}
	assert.False(t, ai.Configured())

	saved, err := svc.SaveSettings(ctx, model.Settings{AIProvider: " OpenAI ", APIKey: "sk-abcdefghijkl", Model: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.Equal(t, "openai", saved.AIProvider)
	assert.Equal(t, "text-embedding-ada-002", saved.EmbeddingModel)
	assert.True(t, ai.Configured())

	// 数据库中的 key 是密文
	raw, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.True(t, secret.IsSealed(raw.APIKey))
	assert.NotContains(t, raw.APIKey, "sk-abcdefghijkl")

	// 回传遮盖后的 key 保持原值
	saved, err = svc.SaveSettings(ctx, model.Settings{AIProvider: "openai", APIKey: secret.Mask("sk-abcdefghijkl"), Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "sk-abcdefghijkl", saved.APIKey)

	got, err = svc.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", got.Model)
	assert.Equal(t, "sk-abcdefghijkl", got.APIKey)

	var rows int64
	require.NoError(t, f.db.Model(&model.SettingsRecord{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)

	// 清空 provider 关闭 AI
	_, err = svc.SaveSettings(ctx, model.Settings{})
	require.NoError(t, err)
	assert.False(t, ai.Configured())

	names := make([]string, 0)
	for _, p := range svc.Providers() {
		names = append(names, p.Name)
	}
	assert.Contains(t, names, "azure")
	assert.Contains(t, names, "ollama")
}
