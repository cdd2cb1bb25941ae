package model

import (
	"strings"
	"unicode/utf8"
)

// MaxTagLength 是标签名的最大字符数。
const MaxTagLength = 50

// Tag 对应于数据库中的 'tags' 表，名称全局唯一。
type Tag struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Tag) TableName() string {
	return "tags"
}

// TagCount 是标签及其关联的想法数量。
type TagCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// NormalizeTag 去除首尾空白、转为小写并截断到 50 个字符。
func NormalizeTag(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if utf8.RuneCountInString(name) > MaxTagLength {
		name = strings.TrimSpace(string([]rune(name)[:MaxTagLength]))
	}
	return name
}

// NormalizeTags 规范化并去重，保持首次出现的顺序，丢弃空标签。
func NormalizeTags(names ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range names {
		for _, n := range list {
			n = NormalizeTag(n)
			if n == "" {
				continue
			}
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}

// IdeaTag 是 ideas 与 tags 的关联表，Position 记录标签在想法中的顺序。
type IdeaTag struct {
	IdeaID   uint `gorm:"primaryKey"`
	TagID    uint `gorm:"primaryKey"`
	Position int  `gorm:"not null;default:0"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (IdeaTag) TableName() string {
	return "idea_tags"
}
