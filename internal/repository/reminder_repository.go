package repository

import (
	"context"
	"errors"
	"fmt"
	"ideasystemx-go/internal/model"
	"time"

	"gorm.io/gorm"
)

// ReminderRepository 接口定义了提醒的数据操作方法。
type ReminderRepository interface {
	Create(ctx context.Context, ideaID uint, dueAt time.Time, message string) (*model.Reminder, error)
	FindAll(ctx context.Context) ([]model.Reminder, error)
	FindByIdea(ctx context.Context, ideaID uint) ([]model.Reminder, error)
	FindPending(ctx context.Context, now time.Time) ([]model.Reminder, error)
	Complete(ctx context.Context, id uint) (bool, error)
}

type reminderRepository struct {
	db *gorm.DB
}

// NewReminderRepository 创建一个新的 ReminderRepository 实例。
func NewReminderRepository(db *gorm.DB) ReminderRepository {
	return &reminderRepository{db: db}
}

// Create 为已存在的想法创建提醒，想法不存在时返回 ErrNotFound。
func (r *reminderRepository) Create(ctx context.Context, ideaID uint, dueAt time.Time, message string) (*model.Reminder, error) {
	reminder := model.Reminder{IdeaID: ideaID, DueAt: dueAt.UTC(), Message: message}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var idea model.Idea
		if err := tx.Select("id").First(&idea, ideaID).Error; err != nil {
			return notFound(err, "idea %d", ideaID)
		}
		return tx.Create(&reminder).Error
	})
	if err != nil {
		return nil, err
	}
	return &reminder, nil
}

// FindAll 按到期时间升序返回全部提醒。
func (r *reminderRepository) FindAll(ctx context.Context) ([]model.Reminder, error) {
	var reminders []model.Reminder
	err := r.db.WithContext(ctx).Order("due_at ASC").Order("id ASC").Find(&reminders).Error
	return reminders, err
}

// FindByIdea 返回某条想法的全部提醒。
func (r *reminderRepository) FindByIdea(ctx context.Context, ideaID uint) ([]model.Reminder, error) {
	var reminders []model.Reminder
	err := r.db.WithContext(ctx).Where("idea_id = ?", ideaID).Order("due_at ASC").Order("id ASC").Find(&reminders).Error
	return reminders, err
}

// FindPending 返回未完成且已到期的提醒。到期时间以 UTC 存储，now 同样换算为 UTC 后比较。
func (r *reminderRepository) FindPending(ctx context.Context, now time.Time) ([]model.Reminder, error) {
	var reminders []model.Reminder
	err := r.db.WithContext(ctx).
		Where("completed = ? AND due_at <= ?", false, now.UTC()).
		Order("due_at ASC").Order("id ASC").
		Find(&reminders).Error
	return reminders, err
}

// Complete 将提醒标记为已完成；提醒不存在时返回 false。
func (r *reminderRepository) Complete(ctx context.Context, id uint) (bool, error) {
	found := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reminder model.Reminder
		if err := tx.First(&reminder, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		found = true
		if reminder.Completed {
			return nil
		}
		if err := tx.Model(&reminder).Update("completed", true).Error; err != nil {
			return fmt.Errorf("complete reminder: %w", err)
		}
		return nil
	})
	return found, err
}

