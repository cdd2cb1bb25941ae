package model

import (
	"time"

	"gorm.io/gorm"
)

// Reminder 对应于数据库中的 'reminders' 表。创建后只有 Completed 可修改。
type Reminder struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	IdeaID    uint      `gorm:"not null;index" json:"ideaId"`
	DueAt     time.Time `gorm:"not null;index" json:"dueAt"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Completed bool      `gorm:"not null;default:false" json:"completed"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Reminder) TableName() string {
	return "reminders"
}

// BeforeSave 统一以 UTC 存储到期时间，SQLite 按文本比较时间列。
func (r *Reminder) BeforeSave(*gorm.DB) error {
	r.DueAt = r.DueAt.UTC()
	return nil
}

// ReminderSuggestion 是 AI 对一条想法是否需要提醒的判断。
type ReminderSuggestion struct {
	NeedsReminder bool      `json:"needsReminder"`
	DueAt         time.Time `json:"dueAt,omitempty"`
	Message       string    `json:"message,omitempty"`
}
