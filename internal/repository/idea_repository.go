// Package repository 包含了所有与数据库交互的逻辑。
package repository

import (
	"context"
	"errors"
	"fmt"
	"ideasystemx-go/internal/model"
	"ideasystemx-go/pkg/errs"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IdeaUpdate 描述一次部分更新，nil 字段保持不变。
type IdeaUpdate struct {
	Content  *string
	Summary  *string
	Tags     *[]string // 非 nil 时整体替换标签集合
	VectorID *string
}

// IdeaRepository 接口定义了想法及其标签的数据操作方法。
type IdeaRepository interface {
	Create(ctx context.Context, content string, tags []string) (*model.Idea, error)
	Update(ctx context.Context, id uint, upd IdeaUpdate) (*model.Idea, error)
	Delete(ctx context.Context, id uint) (bool, error)
	FindByID(ctx context.Context, id uint) (*model.Idea, error)
	FindByIDs(ctx context.Context, ids []uint) ([]model.Idea, error)
	FindAll(ctx context.Context) ([]model.Idea, error)
	SearchByContent(ctx context.Context, query string) ([]model.Idea, error)
	SearchByTag(ctx context.Context, tag string) ([]model.Idea, error)
	FindByTags(ctx context.Context, tags []string) ([]model.Idea, error)
	ListTags(ctx context.Context) ([]model.TagCount, error)
	SetVectorID(ctx context.Context, id uint, vectorID *string) error
}

type ideaRepository struct {
	db *gorm.DB
}

// NewIdeaRepository 创建一个新的 IdeaRepository 实例。
func NewIdeaRepository(db *gorm.DB) IdeaRepository {
	return &ideaRepository{db: db}
}

// AutoMigrate 创建或更新全部表结构。
func AutoMigrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&model.Idea{}, "Tags", &model.IdeaTag{}); err != nil {
		return fmt.Errorf("setup idea_tags: %w", err)
	}
	return db.AutoMigrate(&model.Idea{}, &model.Tag{}, &model.Reminder{}, &model.SettingsRecord{})
}

func preloadTags(db *gorm.DB) *gorm.DB {
	return db.Preload("Tags", func(db *gorm.DB) *gorm.DB {
		return db.Order("tags.name ASC")
	})
}

// linkTags 用 tagRows 整体替换想法的标签关联，并按切片顺序记录 position。
func linkTags(tx *gorm.DB, ideaID uint, tagRows []model.Tag) error {
	if err := tx.Where("idea_id = ?", ideaID).Delete(&model.IdeaTag{}).Error; err != nil {
		return err
	}
	if len(tagRows) == 0 {
		return nil
	}
	links := make([]model.IdeaTag, 0, len(tagRows))
	for i, t := range tagRows {
		links = append(links, model.IdeaTag{IdeaID: ideaID, TagID: t.ID, Position: i})
	}
	return tx.Create(&links).Error
}

// sortTags 按关联表中的 position 排列每条想法的标签。
func sortTags(db *gorm.DB, ideas []model.Idea) error {
	if len(ideas) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(ideas))
	for _, i := range ideas {
		ids = append(ids, i.ID)
	}
	var links []model.IdeaTag
	if err := db.Where("idea_id IN ?", ids).Find(&links).Error; err != nil {
		return err
	}
	positions := make(map[[2]uint]int, len(links))
	for _, l := range links {
		positions[[2]uint{l.IdeaID, l.TagID}] = l.Position
	}
	for i := range ideas {
		idea := &ideas[i]
		sort.SliceStable(idea.Tags, func(a, b int) bool {
			return positions[[2]uint{idea.ID, idea.Tags[a].ID}] < positions[[2]uint{idea.ID, idea.Tags[b].ID}]
		})
	}
	return nil
}

// findIdeas 执行查询并按 position 排列标签。
func findIdeas(db *gorm.DB, ideas *[]model.Idea) error {
	if err := db.Find(ideas).Error; err != nil {
		return err
	}
	return sortTags(db.Session(&gorm.Session{NewDB: true}), *ideas)
}

// firstIdea 按 id 读取一条想法，标签按 position 排列。
func firstIdea(db *gorm.DB, id uint, idea *model.Idea) error {
	if err := preloadTags(db).First(idea, id).Error; err != nil {
		return err
	}
	one := []model.Idea{*idea}
	if err := sortTags(db.Session(&gorm.Session{NewDB: true}), one); err != nil {
		return err
	}
	*idea = one[0]
	return nil
}

func newestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("ideas.created_at DESC").Order("ideas.id DESC")
}

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf(format+": %w", append(args, errs.ErrNotFound)...)
	}
	return err
}

// findOrCreateTags 返回 names 对应的标签行，不存在的标签在 tx 中创建。
func findOrCreateTags(tx *gorm.DB, names []string) ([]model.Tag, error) {
	if len(names) == 0 {
		return nil, nil
	}

	var existing []model.Tag
	if err := tx.Where("name IN ?", names).Find(&existing).Error; err != nil {
		return nil, err
	}
	byName := make(map[string]model.Tag, len(existing))
	for _, t := range existing {
		byName[t.Name] = t
	}

	var missing []model.Tag
	for _, n := range names {
		if _, ok := byName[n]; !ok {
			missing = append(missing, model.Tag{Name: n})
		}
	}
	if len(missing) > 0 {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&missing).Error; err != nil {
			return nil, err
		}
		// 并发写入时 DoNothing 的行没有回填 ID，重新查询
		var created []model.Tag
		if err := tx.Where("name IN ?", names).Find(&created).Error; err != nil {
			return nil, err
		}
		for _, t := range created {
			byName[t.Name] = t
		}
	}

	tags := make([]model.Tag, 0, len(names))
	for _, n := range names {
		if t, ok := byName[n]; ok {
			tags = append(tags, t)
		}
	}
	return tags, nil
}

// Create 在一个事务中插入想法、查找或创建标签并建立关联。
func (r *ideaRepository) Create(ctx context.Context, content string, tags []string) (*model.Idea, error) {
	names := model.NormalizeTags(tags)
	var idea model.Idea

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		idea = model.Idea{Content: content}
		if err := tx.Omit(clause.Associations).Create(&idea).Error; err != nil {
			return fmt.Errorf("insert idea: %w", err)
		}
		tagRows, err := findOrCreateTags(tx, names)
		if err != nil {
			return fmt.Errorf("resolve tags: %w", err)
		}
		if err := linkTags(tx, idea.ID, tagRows); err != nil {
			return fmt.Errorf("link tags: %w", err)
		}
		return firstIdea(tx, idea.ID, &idea)
	})
	if err != nil {
		return nil, err
	}
	return &idea, nil
}

// Update 只更新提供的字段，总是刷新 updated_at；标签替换与字段更新在同一事务中。
func (r *ideaRepository) Update(ctx context.Context, id uint, upd IdeaUpdate) (*model.Idea, error) {
	var idea model.Idea

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&idea, id).Error; err != nil {
			return notFound(err, "idea %d", id)
		}

		updates := map[string]interface{}{"updated_at": nextUpdatedAt(idea)}
		if upd.Content != nil {
			updates["content"] = *upd.Content
		}
		if upd.Summary != nil {
			updates["summary"] = *upd.Summary
		}
		if upd.VectorID != nil {
			updates["vector_id"] = *upd.VectorID
		}
		if err := tx.Model(&idea).Omit(clause.Associations).Updates(updates).Error; err != nil {
			return fmt.Errorf("update idea: %w", err)
		}

		if upd.Tags != nil {
			tagRows, err := findOrCreateTags(tx, model.NormalizeTags(*upd.Tags))
			if err != nil {
				return fmt.Errorf("resolve tags: %w", err)
			}
			if err := linkTags(tx, idea.ID, tagRows); err != nil {
				return fmt.Errorf("replace tags: %w", err)
			}
		}
		return firstIdea(tx, id, &idea)
	})
	if err != nil {
		return nil, err
	}
	return &idea, nil
}

// nextUpdatedAt 保证 updated_at 单调且不早于 created_at。
func nextUpdatedAt(idea model.Idea) time.Time {
	now := time.Now()
	if now.Before(idea.UpdatedAt) {
		return idea.UpdatedAt
	}
	return now
}

// Delete 在一个事务中删除标签关联、提醒与想法本身；想法不存在时返回 false。
func (r *ideaRepository) Delete(ctx context.Context, id uint) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var idea model.Idea
		if err := tx.First(&idea, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if err := tx.Where("idea_id = ?", id).Delete(&model.IdeaTag{}).Error; err != nil {
			return fmt.Errorf("clear tags: %w", err)
		}
		if err := tx.Where("idea_id = ?", id).Delete(&model.Reminder{}).Error; err != nil {
			return fmt.Errorf("delete reminders: %w", err)
		}
		res := tx.Delete(&model.Idea{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete idea: %w", res.Error)
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// FindByID 根据 id 查找想法，不存在时返回 ErrNotFound。
func (r *ideaRepository) FindByID(ctx context.Context, id uint) (*model.Idea, error) {
	var idea model.Idea
	if err := firstIdea(r.db.WithContext(ctx), id, &idea); err != nil {
		return nil, notFound(err, "idea %d", id)
	}
	return &idea, nil
}

// FindByIDs 按 ids 的顺序返回存在的想法，缺失的 id 被跳过。
func (r *ideaRepository) FindByIDs(ctx context.Context, ids []uint) ([]model.Idea, error) {
	if len(ids) == 0 {
		return []model.Idea{}, nil
	}
	var rows []model.Idea
	if err := findIdeas(preloadTags(r.db.WithContext(ctx)).Where("id IN ?", ids), &rows); err != nil {
		return nil, err
	}
	byID := make(map[uint]model.Idea, len(rows))
	for _, i := range rows {
		byID[i.ID] = i
	}
	out := make([]model.Idea, 0, len(rows))
	for _, id := range ids {
		if i, ok := byID[id]; ok {
			out = append(out, i)
		}
	}
	return out, nil
}

// FindAll 按创建时间倒序返回全部想法。
func (r *ideaRepository) FindAll(ctx context.Context) ([]model.Idea, error) {
	var ideas []model.Idea
	err := findIdeas(newestFirst(preloadTags(r.db.WithContext(ctx))), &ideas)
	return ideas, err
}

// SearchByContent 对内容做不区分大小写的子串匹配。
func (r *ideaRepository) SearchByContent(ctx context.Context, query string) ([]model.Idea, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return r.FindAll(ctx)
	}
	lowered := strings.ToLower(query)
	if !isASCII(lowered) {
		return r.searchUnicode(ctx, lowered)
	}
	pattern := "%" + escapeLike(lowered) + "%"
	var ideas []model.Idea
	err := findIdeas(newestFirst(preloadTags(r.db.WithContext(ctx))).
		Where("LOWER(ideas.content) LIKE ? ESCAPE '!'", pattern), &ideas)
	return ideas, err
}

// searchUnicode 在 Go 中做大小写折叠匹配，SQLite 的 LOWER() 只处理 ASCII 字母。
func (r *ideaRepository) searchUnicode(ctx context.Context, lowered string) ([]model.Idea, error) {
	all, err := r.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Idea, 0, len(all))
	for _, idea := range all {
		if strings.Contains(strings.ToLower(idea.Content), lowered) {
			out = append(out, idea)
		}
	}
	return out, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

// SearchByTag 返回带有指定标签（规范化后精确匹配）的想法。
func (r *ideaRepository) SearchByTag(ctx context.Context, tag string) ([]model.Idea, error) {
	name := model.NormalizeTag(tag)
	if name == "" {
		return []model.Idea{}, nil
	}
	var ideas []model.Idea
	err := findIdeas(newestFirst(preloadTags(r.db.WithContext(ctx))).
		Joins("JOIN idea_tags ON idea_tags.idea_id = ideas.id").
		Joins("JOIN tags ON tags.id = idea_tags.tag_id").
		Where("tags.name = ?", name), &ideas)
	return ideas, err
}

// FindByTags 返回同时带有全部指定标签的想法（交集）。
func (r *ideaRepository) FindByTags(ctx context.Context, tags []string) ([]model.Idea, error) {
	names := model.NormalizeTags(tags)
	if len(names) == 0 {
		return []model.Idea{}, nil
	}

	db := r.db.WithContext(ctx)
	matched := db.Table("idea_tags").
		Select("idea_tags.idea_id").
		Joins("JOIN tags ON tags.id = idea_tags.tag_id").
		Where("tags.name IN ?", names).
		Group("idea_tags.idea_id").
		Having("COUNT(DISTINCT tags.name) = ?", len(names))

	var ideas []model.Idea
	err := findIdeas(newestFirst(preloadTags(db)).Where("ideas.id IN (?)", matched), &ideas)
	return ideas, err
}

// ListTags 返回被至少一条想法使用的标签及其使用次数，按次数降序、名称升序。
func (r *ideaRepository) ListTags(ctx context.Context) ([]model.TagCount, error) {
	var out []model.TagCount
	err := r.db.WithContext(ctx).
		Table("tags").
		Select("tags.name AS name, COUNT(idea_tags.idea_id) AS count").
		Joins("JOIN idea_tags ON idea_tags.tag_id = tags.id").
		Group("tags.id, tags.name").
		Order("count DESC").Order("tags.name ASC").
		Scan(&out).Error
	if out == nil {
		out = []model.TagCount{}
	}
	return out, err
}

// SetVectorID 只更新向量引用，不修改 updated_at。
func (r *ideaRepository) SetVectorID(ctx context.Context, id uint, vectorID *string) error {
	res := r.db.WithContext(ctx).Model(&model.Idea{}).Where("id = ?", id).UpdateColumn("vector_id", vectorID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("idea %d: %w", id, errs.ErrNotFound)
	}
	return nil
}
