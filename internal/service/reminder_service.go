package service

import (
	"context"
	"fmt"
	"ideasystemx-go/internal/model"
	"ideasystemx-go/internal/repository"
	"ideasystemx-go/pkg/errs"
	"strings"
	"time"
)

// ReminderService 管理想法的提醒。
type ReminderService interface {
	AddReminder(ctx context.Context, ideaID uint, dueAt time.Time, message string) (*model.Reminder, error)
	ListReminders(ctx context.Context) ([]model.Reminder, error)
	ListIdeaReminders(ctx context.Context, ideaID uint) ([]model.Reminder, error)
	PendingReminders(ctx context.Context) ([]model.Reminder, error)
	CompleteReminder(ctx context.Context, id uint) error
}

type reminderService struct {
	reminders repository.ReminderRepository
	ideas     repository.IdeaRepository
	now       func() time.Time
}

// NewReminderService 创建一个新的 ReminderService 实例。now 为空时使用 time.Now。
func NewReminderService(reminders repository.ReminderRepository, ideas repository.IdeaRepository, now func() time.Time) ReminderService {
	if now == nil {
		now = time.Now
	}
	return &reminderService{reminders: reminders, ideas: ideas, now: now}
}

func (s *reminderService) AddReminder(ctx context.Context, ideaID uint, dueAt time.Time, message string) (*model.Reminder, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("reminder message is empty: %w", errs.ErrValidation)
	}
	if dueAt.IsZero() {
		return nil, fmt.Errorf("reminder due date is missing: %w", errs.ErrValidation)
	}
	return s.reminders.Create(ctx, ideaID, dueAt, message)
}

func (s *reminderService) ListReminders(ctx context.Context) ([]model.Reminder, error) {
	return s.reminders.FindAll(ctx)
}

func (s *reminderService) ListIdeaReminders(ctx context.Context, ideaID uint) ([]model.Reminder, error) {
	if _, err := s.ideas.FindByID(ctx, ideaID); err != nil {
		return nil, err
	}
	return s.reminders.FindByIdea(ctx, ideaID)
}

// PendingReminders 返回已到期且未完成的提醒。
func (s *reminderService) PendingReminders(ctx context.Context) ([]model.Reminder, error) {
	return s.reminders.FindPending(ctx, s.now())
}

func (s *reminderService) CompleteReminder(ctx context.Context, id uint) error {
	ok, err := s.reminders.Complete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("reminder %d: %w", id, errs.ErrNotFound)
	}
	return nil
}
