package service

import (
	"context"
	"errors"
	"fmt"
	"ideasystemx-go/internal/model"
	"ideasystemx-go/internal/repository"
	"ideasystemx-go/pkg/embedding"
	"ideasystemx-go/pkg/errs"
	"ideasystemx-go/pkg/llm"
	"ideasystemx-go/pkg/log"
	"ideasystemx-go/pkg/vectordb"
	"strconv"
	"strings"
	"time"
)

const (
	defaultSearchLimit = 10
	answerContextLimit = 5
)

// VectorStore 是 IdeaService 所需的向量存储能力，*vectordb.Store 满足该接口。
type VectorStore interface {
	Put(id string, vector []float32, metadata map[string]interface{}) (vectordb.VectorRecord, error)
	Get(id string) (vectordb.VectorRecord, bool)
	Delete(id string) (bool, error)
	All() []vectordb.VectorRecord
	SearchSimilarWhere(query []float32, limit int, threshold float64, where map[string]string) ([]vectordb.SimilarityResult, error)
}

// IdeaOptions 配置相关想法与自动提醒。
type IdeaOptions struct {
	RelatedThreshold      float64 // provider 向量的相关阈值
	LocalRelatedThreshold float64 // 本地哈希向量的相关阈值
	RelatedLimit          int
	AutoReminder          bool
	Now                   func() time.Time
}

// CreateIdeaResult 是创建想法的结果。Reminder 与 Related 可能为空。
type CreateIdeaResult struct {
	Idea     model.IdeaDTO       `json:"idea"`
	Reminder *model.Reminder     `json:"reminder,omitempty"`
	Related  []model.RelatedIdea `json:"related"`
	Embedded bool                `json:"embedded"`
	Analyzed bool                `json:"analyzed"` // 标签与摘要来自 AI
}

// UpdateIdeaInput 描述一次想法更新，nil 字段保持不变。
type UpdateIdeaInput struct {
	Content *string   `json:"content"`
	Tags    *[]string `json:"tags"`
}

// SuggestReminderResult 是手动生成提醒的结果。
type SuggestReminderResult struct {
	Suggestion model.ReminderSuggestion `json:"suggestion"`
	Reminder   *model.Reminder          `json:"reminder,omitempty"`
}

// AnswerResult 是知识库问答的结果。
type AnswerResult struct {
	Answer  string          `json:"answer"`
	Sources []model.IdeaDTO `json:"sources"`
}

// ReindexResult 统计一次重建向量的结果。
type ReindexResult struct {
	Embedded int `json:"embedded"`
	Failed   int `json:"failed"`
	Removed  int `json:"removed"`
}

// IdeaService 编排关系存储、向量存储与 AI 服务。关系数据是权威来源，向量相关能力失败时降级。
type IdeaService interface {
	CreateIdea(ctx context.Context, content string, tags []string) (*CreateIdeaResult, error)
	GetIdea(ctx context.Context, id uint) (*model.IdeaDTO, error)
	ListIdeas(ctx context.Context) ([]model.IdeaDTO, error)
	UpdateIdea(ctx context.Context, id uint, in UpdateIdeaInput) (*model.IdeaDTO, error)
	DeleteIdea(ctx context.Context, id uint) error
	SearchByContent(ctx context.Context, query string) ([]model.IdeaDTO, error)
	SearchByTag(ctx context.Context, tag string) ([]model.IdeaDTO, error)
	GetByTags(ctx context.Context, tags []string) ([]model.IdeaDTO, error)
	ListTags(ctx context.Context) ([]model.TagCount, error)
	FindRelated(ctx context.Context, id uint, limit int) ([]model.RelatedIdea, error)
	SemanticSearch(ctx context.Context, query string, limit int) ([]model.RelatedIdea, error)
	AnalyzeIdea(ctx context.Context, id uint) (*model.IdeaDTO, error)
	SuggestReminder(ctx context.Context, id uint) (*SuggestReminderResult, error)
	Answer(ctx context.Context, query string) (*AnswerResult, error)
	StreamAnswer(ctx context.Context, query string, writer llm.MessageWriter) ([]model.IdeaDTO, error)
	Reindex(ctx context.Context) (*ReindexResult, error)
}

type ideaService struct {
	ideas     repository.IdeaRepository
	reminders repository.ReminderRepository
	vectors   VectorStore
	ai        AIService
	opts      IdeaOptions
}

// NewIdeaService 创建一个新的 IdeaService 实例。
func NewIdeaService(
	ideas repository.IdeaRepository,
	reminders repository.ReminderRepository,
	vectors VectorStore,
	ai AIService,
	opts IdeaOptions,
) IdeaService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RelatedLimit <= 0 {
		opts.RelatedLimit = 5
	}
	return &ideaService{
		ideas:     ideas,
		reminders: reminders,
		vectors:   vectors,
		ai:        ai,
		opts:      opts,
	}
}

func vectorKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// CreateIdea 先持久化想法，之后的向量化、分析、提醒与相关推荐都只降级不失败。
func (s *ideaService) CreateIdea(ctx context.Context, content string, tags []string) (*CreateIdeaResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("idea content is empty: %w", errs.ErrValidation)
	}

	idea, err := s.ideas.Create(ctx, content, tags)
	if err != nil {
		return nil, err
	}
	log.Infof("[IdeaService] 想法已保存, id: %d", idea.ID)

	result := &CreateIdeaResult{}

	// 1. 向量化
	emb, embedded := s.embedAndStore(ctx, idea)
	result.Embedded = embedded

	// 2. 标签与摘要
	if updated, analyzed := s.enrich(ctx, idea, tags); updated != nil {
		idea = updated
		result.Analyzed = analyzed
	}

	// 3. 提醒建议
	if s.opts.AutoReminder && s.ai.Configured() {
		result.Reminder = s.autoReminder(ctx, idea)
	}

	// 4. 相关想法
	result.Related = []model.RelatedIdea{}
	if embedded {
		result.Related = s.related(ctx, idea.ID, emb.Vector, emb.Model, s.opts.RelatedLimit)
	}

	result.Idea = idea.ToDTO()
	return result, nil
}

// embedAndStore 为想法生成向量并写入向量存储，失败时记录日志并返回 false。
func (s *ideaService) embedAndStore(ctx context.Context, idea *model.Idea) (Embedding, bool) {
	emb, err := s.ai.Embed(ctx, idea.Content)
	if err != nil {
		log.Warnf("[IdeaService] 想法 %d 向量化失败: %v", idea.ID, err)
		return Embedding{}, false
	}

	key := vectorKey(idea.ID)
	meta := map[string]interface{}{
		"idea_id": idea.ID,
		"model":   emb.Model,
		"source":  emb.Source,
	}
	if _, err := s.vectors.Put(key, emb.Vector, meta); err != nil {
		log.Warnf("[IdeaService] 想法 %d 写入向量存储失败: %v", idea.ID, err)
		return Embedding{}, false
	}
	if err := s.ideas.SetVectorID(ctx, idea.ID, &key); err != nil {
		log.Warnf("[IdeaService] 想法 %d 记录 vectorId 失败: %v", idea.ID, err)
	} else {
		idea.VectorID = &key
	}
	return emb, true
}

// dropVector 删除与当前内容不再对应的向量并清空 vectorId，reindex 时会重新生成。
func (s *ideaService) dropVector(ctx context.Context, idea *model.Idea) {
	if _, err := s.vectors.Delete(vectorKey(idea.ID)); err != nil {
		log.Warnw("[IdeaService] 删除过期向量失败", "ideaId", idea.ID, "error", err)
	}
	if idea.VectorID == nil {
		return
	}
	if err := s.ideas.SetVectorID(ctx, idea.ID, nil); err != nil {
		log.Warnw("[IdeaService] 清空 vectorId 失败", "ideaId", idea.ID, "error", err)
		return
	}
	idea.VectorID = nil
}

// enrich 合并用户标签与 AI（或启发式）标签并写入摘要。返回 nil 表示未更新。
func (s *ideaService) enrich(ctx context.Context, idea *model.Idea, userTags []string) (*model.Idea, bool) {
	var (
		extra    []string
		summary  *string
		analyzed bool
	)

	if s.ai.Configured() {
		analysis, err := s.ai.Analyze(ctx, idea.Content)
		switch {
		case err != nil:
			log.Warnf("[IdeaService] 想法 %d AI 分析失败, 使用关键词提取: %v", idea.ID, err)
		case len(analysis.Tags) == 0 && analysis.Summary == "":
			log.Warnf("[IdeaService] 想法 %d AI 分析结果为空, 使用关键词提取", idea.ID)
		default:
			extra = analysis.Tags
			if analysis.Summary != "" {
				summary = &analysis.Summary
			}
			analyzed = true
		}
	}
	if !analyzed || len(extra) == 0 {
		extra = append(extra, HeuristicTags(idea.Content)...)
	}

	merged := model.NormalizeTags(userTags, idea.TagNames(), extra)
	if summary == nil && sameTags(merged, idea.TagNames()) {
		return nil, analyzed
	}

	updated, err := s.ideas.Update(ctx, idea.ID, repository.IdeaUpdate{Tags: &merged, Summary: summary})
	if err != nil {
		log.Warnf("[IdeaService] 想法 %d 写入标签与摘要失败: %v", idea.ID, err)
		return nil, false
	}
	return updated, analyzed
}

func sameTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, t := range a {
		seen[t] = struct{}{}
	}
	for _, t := range b {
		if _, ok := seen[t]; !ok {
			return false
		}
	}
	return true
}

func (s *ideaService) autoReminder(ctx context.Context, idea *model.Idea) *model.Reminder {
	suggestion, err := s.ai.SuggestReminder(ctx, idea.Content, s.opts.Now())
	if err != nil {
		log.Warnf("[IdeaService] 想法 %d 提醒建议失败: %v", idea.ID, err)
		return nil
	}
	if !suggestion.NeedsReminder {
		return nil
	}
	reminder, err := s.reminders.Create(ctx, idea.ID, suggestion.DueAt, suggestion.Message)
	if err != nil {
		log.Warnf("[IdeaService] 想法 %d 创建提醒失败: %v", idea.ID, err)
		return nil
	}
	log.Infof("[IdeaService] 想法 %d 已创建提醒 %d, 到期: %s", idea.ID, reminder.ID, reminder.DueAt.Format(time.RFC3339))
	return reminder
}

func (s *ideaService) thresholdFor(embeddingModel string) float64 {
	if embeddingModel == embedding.LocalModel {
		return s.opts.LocalRelatedThreshold
	}
	return s.opts.RelatedThreshold
}

// related 在同一向量模型的记录中查找相似想法，排除 selfID，无法解析的命中被跳过。
func (s *ideaService) related(ctx context.Context, selfID uint, vector []float32, embeddingModel string, limit int) []model.RelatedIdea {
	return s.searchVectors(ctx, selfID, vector, embeddingModel, limit, s.thresholdFor(embeddingModel))
}

func (s *ideaService) searchVectors(ctx context.Context, selfID uint, vector []float32, embeddingModel string, limit int, threshold float64) []model.RelatedIdea {
	out := []model.RelatedIdea{}
	if limit <= 0 {
		return out
	}

	hits, err := s.vectors.SearchSimilarWhere(vector, limit+1, threshold, map[string]string{"model": embeddingModel})
	if err != nil {
		log.Warnf("[IdeaService] 向量检索失败: %v", err)
		return out
	}

	ids := make([]uint, 0, len(hits))
	similarity := make(map[uint]float64, len(hits))
	for _, h := range hits {
		id, err := strconv.ParseUint(h.ID, 10, 64)
		if err != nil || uint(id) == selfID {
			continue
		}
		ids = append(ids, uint(id))
		similarity[uint(id)] = h.Similarity
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	if len(ids) == 0 {
		return out
	}

	ideas, err := s.ideas.FindByIDs(ctx, ids)
	if err != nil {
		log.Warnf("[IdeaService] 解析相关想法失败: %v", err)
		return out
	}
	for i := range ideas {
		out = append(out, model.RelatedIdea{
			Idea:       ideas[i].ToDTO(),
			Similarity: similarity[ideas[i].ID],
		})
	}
	return out
}

func (s *ideaService) GetIdea(ctx context.Context, id uint) (*model.IdeaDTO, error) {
	idea, err := s.ideas.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := idea.ToDTO()
	return &dto, nil
}

func (s *ideaService) ListIdeas(ctx context.Context) ([]model.IdeaDTO, error) {
	ideas, err := s.ideas.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return model.ToDTOs(ideas), nil
}

// UpdateIdea 更新内容或标签；内容变化时尽力重新向量化。
func (s *ideaService) UpdateIdea(ctx context.Context, id uint, in UpdateIdeaInput) (*model.IdeaDTO, error) {
	upd := repository.IdeaUpdate{Tags: in.Tags}
	if in.Content != nil {
		content := strings.TrimSpace(*in.Content)
		if content == "" {
			return nil, fmt.Errorf("idea content is empty: %w", errs.ErrValidation)
		}
		upd.Content = &content
	}

	before, err := s.ideas.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	idea, err := s.ideas.Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	if upd.Content != nil && *upd.Content != before.Content {
		if _, ok := s.embedAndStore(ctx, idea); !ok {
			s.dropVector(ctx, idea)
		}
	}
	dto := idea.ToDTO()
	return &dto, nil
}

// DeleteIdea 先删除关系数据，再尽力删除向量记录。
func (s *ideaService) DeleteIdea(ctx context.Context, id uint) error {
	removed, err := s.ideas.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("idea %d: %w", id, errs.ErrNotFound)
	}
	if _, err := s.vectors.Delete(vectorKey(id)); err != nil {
		log.Warnf("[IdeaService] 删除想法 %d 的向量失败: %v", id, err)
	}
	log.Infof("[IdeaService] 想法已删除, id: %d", id)
	return nil
}

func (s *ideaService) SearchByContent(ctx context.Context, query string) ([]model.IdeaDTO, error) {
	ideas, err := s.ideas.SearchByContent(ctx, query)
	if err != nil {
		return nil, err
	}
	return model.ToDTOs(ideas), nil
}

func (s *ideaService) SearchByTag(ctx context.Context, tag string) ([]model.IdeaDTO, error) {
	ideas, err := s.ideas.SearchByTag(ctx, tag)
	if err != nil {
		return nil, err
	}
	return model.ToDTOs(ideas), nil
}

func (s *ideaService) GetByTags(ctx context.Context, tags []string) ([]model.IdeaDTO, error) {
	ideas, err := s.ideas.FindByTags(ctx, tags)
	if err != nil {
		return nil, err
	}
	return model.ToDTOs(ideas), nil
}

func (s *ideaService) ListTags(ctx context.Context) ([]model.TagCount, error) {
	return s.ideas.ListTags(ctx)
}

// FindRelated 返回与已存在想法相似的想法；想法没有向量时返回空列表。
func (s *ideaService) FindRelated(ctx context.Context, id uint, limit int) ([]model.RelatedIdea, error) {
	if _, err := s.ideas.FindByID(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.opts.RelatedLimit
	}
	rec, ok := s.vectors.Get(vectorKey(id))
	if !ok {
		return []model.RelatedIdea{}, nil
	}
	embeddingModel, _ := rec.Metadata["model"].(string)
	return s.related(ctx, id, rec.Vector, embeddingModel, limit), nil
}

// SemanticSearch 按查询文本的向量检索想法；向量化失败时返回空结果。
func (s *ideaService) SemanticSearch(ctx context.Context, query string, limit int) ([]model.RelatedIdea, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is empty: %w", errs.ErrValidation)
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	emb, err := s.ai.Embed(ctx, query)
	if err != nil {
		log.Warnf("[IdeaService] 查询向量化失败, 返回空结果: %v", err)
		return []model.RelatedIdea{}, nil
	}
	return s.searchVectors(ctx, 0, emb.Vector, emb.Model, limit, 0), nil
}

// AnalyzeIdea 重新生成标签与摘要。AI 未配置时使用关键词提取，AI 调用失败时返回错误。
func (s *ideaService) AnalyzeIdea(ctx context.Context, id uint) (*model.IdeaDTO, error) {
	idea, err := s.ideas.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	upd := repository.IdeaUpdate{}
	if s.ai.Configured() {
		analysis, err := s.ai.Analyze(ctx, idea.Content)
		if err != nil {
			return nil, err
		}
		tags := model.NormalizeTags(idea.TagNames(), analysis.Tags)
		upd.Tags = &tags
		if analysis.Summary != "" {
			upd.Summary = &analysis.Summary
		}
	} else {
		tags := model.NormalizeTags(idea.TagNames(), HeuristicTags(idea.Content))
		upd.Tags = &tags
	}

	updated, err := s.ideas.Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	dto := updated.ToDTO()
	return &dto, nil
}

// SuggestReminder 手动请求提醒建议，建议成立时创建提醒。
func (s *ideaService) SuggestReminder(ctx context.Context, id uint) (*SuggestReminderResult, error) {
	idea, err := s.ideas.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.ai.Configured() {
		return nil, fmt.Errorf("reminder suggestion needs an AI provider: %w", errs.ErrProviderUnavailable)
	}

	suggestion, err := s.ai.SuggestReminder(ctx, idea.Content, s.opts.Now())
	if err != nil {
		return nil, err
	}
	result := &SuggestReminderResult{Suggestion: *suggestion}
	if suggestion.NeedsReminder {
		reminder, err := s.reminders.Create(ctx, idea.ID, suggestion.DueAt, suggestion.Message)
		if err != nil {
			return nil, err
		}
		result.Reminder = reminder
	}
	return result, nil
}

// contextNotes 为问答挑选上下文：优先语义检索，无结果时退回内容检索。
func (s *ideaService) contextNotes(ctx context.Context, query string) []model.Idea {
	if emb, err := s.ai.Embed(ctx, query); err == nil {
		hits, err := s.vectors.SearchSimilarWhere(emb.Vector, answerContextLimit, s.thresholdFor(emb.Model)/2,
			map[string]string{"model": emb.Model})
		if err == nil && len(hits) > 0 {
			ids := make([]uint, 0, len(hits))
			for _, h := range hits {
				if id, err := strconv.ParseUint(h.ID, 10, 64); err == nil {
					ids = append(ids, uint(id))
				}
			}
			if notes, err := s.ideas.FindByIDs(ctx, ids); err == nil && len(notes) > 0 {
				return notes
			}
		}
	}

	notes, err := s.ideas.SearchByContent(ctx, query)
	if err != nil {
		log.Warnf("[IdeaService] 内容检索失败: %v", err)
		return nil
	}
	if len(notes) > answerContextLimit {
		notes = notes[:answerContextLimit]
	}
	return notes
}

func (s *ideaService) prepareAnswer(ctx context.Context, query string) (string, []model.Idea, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", nil, fmt.Errorf("query is empty: %w", errs.ErrValidation)
	}
	if !s.ai.Configured() {
		return "", nil, fmt.Errorf("answering needs an AI provider: %w", errs.ErrProviderUnavailable)
	}
	return query, s.contextNotes(ctx, query), nil
}

func (s *ideaService) Answer(ctx context.Context, query string) (*AnswerResult, error) {
	query, notes, err := s.prepareAnswer(ctx, query)
	if err != nil {
		return nil, err
	}
	answer, err := s.ai.Answer(ctx, query, notes)
	if err != nil {
		return nil, err
	}
	return &AnswerResult{Answer: answer, Sources: model.ToDTOs(notes)}, nil
}

func (s *ideaService) StreamAnswer(ctx context.Context, query string, writer llm.MessageWriter) ([]model.IdeaDTO, error) {
	query, notes, err := s.prepareAnswer(ctx, query)
	if err != nil {
		return nil, err
	}
	log.Infof("[IdeaService] 流式问答, 上下文笔记 %d 条", len(notes))
	if err := s.ai.StreamAnswer(ctx, query, notes, writer); err != nil {
		return nil, err
	}
	return model.ToDTOs(notes), nil
}

// Reindex 用当前向量模型重建所有想法的向量，并删除没有对应想法的向量记录。
func (s *ideaService) Reindex(ctx context.Context) (*ReindexResult, error) {
	ideas, err := s.ideas.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	result := &ReindexResult{}
	live := make(map[string]struct{}, len(ideas))
	for i := range ideas {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		live[vectorKey(ideas[i].ID)] = struct{}{}
		if _, ok := s.embedAndStore(ctx, &ideas[i]); ok {
			result.Embedded++
		} else {
			result.Failed++
		}
	}

	for _, rec := range s.vectors.All() {
		if _, ok := live[rec.ID]; ok {
			continue
		}
		removed, err := s.vectors.Delete(rec.ID)
		if err != nil {
			if errors.Is(err, errs.ErrPersistence) {
				return result, err
			}
			log.Warnf("[IdeaService] 删除孤立向量 %s 失败: %v", rec.ID, err)
			continue
		}
		if removed {
			result.Removed++
		}
	}
	log.Infow("[IdeaService] 向量重建完成", "embedded", result.Embedded, "failed", result.Failed, "removed", result.Removed)
	return result, nil
}
