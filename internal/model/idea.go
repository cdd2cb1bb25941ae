// Package model 定义了与数据库表对应的 Go 结构体。
package model

import (
	"time"
	"unicode/utf8"
)

// PreviewLength 是列表预览截取的字符数。
const PreviewLength = 100

// Idea 对应于数据库中的 'ideas' 表，是一条用户记录的想法。
type Idea struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Content string `gorm:"type:text;not null" json:"content"`
	// Summary 由 AI 分析生成，分析失败或未配置 AI 时为 NULL。
	Summary *string `gorm:"type:text" json:"summary"`
	// VectorID 指向向量索引中的记录，是可缺失的软引用。
	VectorID  *string    `gorm:"type:varchar(64);index" json:"vectorId"`
	Tags      []Tag      `gorm:"many2many:idea_tags;constraint:OnDelete:CASCADE" json:"tags"`
	Reminders []Reminder `gorm:"foreignKey:IdeaID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Idea) TableName() string {
	return "ideas"
}

// TagNames 返回标签名列表。
func (i *Idea) TagNames() []string {
	names := make([]string, 0, len(i.Tags))
	for _, t := range i.Tags {
		names = append(names, t.Name)
	}
	return names
}

// IdeaDTO 是 API 与 CLI 输出的想法结构，标签展开为字符串列表。
type IdeaDTO struct {
	ID        uint      `json:"id"`
	Content   string    `json:"content"`
	Summary   *string   `json:"summary"`
	Preview   string    `json:"preview"`
	Tags      []string  `json:"tags"`
	VectorID  *string   `json:"vectorId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ToDTO 转换为输出结构。
func (i *Idea) ToDTO() IdeaDTO {
	return IdeaDTO{
		ID:        i.ID,
		Content:   i.Content,
		Summary:   i.Summary,
		Preview:   Preview(i.Content),
		Tags:      i.TagNames(),
		VectorID:  i.VectorID,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}

// ToDTOs 批量转换。
func ToDTOs(ideas []Idea) []IdeaDTO {
	out := make([]IdeaDTO, 0, len(ideas))
	for i := range ideas {
		out = append(out, ideas[i].ToDTO())
	}
	return out
}

// Preview 截取内容的前 100 个字符，超出部分以 "..." 表示。
func Preview(content string) string {
	if utf8.RuneCountInString(content) <= PreviewLength {
		return content
	}
	return string([]rune(content)[:PreviewLength]) + "..."
}

// RelatedIdea 是一条相似想法及其相似度。
type RelatedIdea struct {
	Idea       IdeaDTO `json:"idea"`
	Similarity float64 `json:"similarity"`
}
