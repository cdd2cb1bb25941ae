package service

import (
	"context"
	"ideasystemx-go/internal/model"
	"ideasystemx-go/pkg/log"
	"sync"
	"time"
)

// ReminderNotifier 接收新到期的提醒。
type ReminderNotifier interface {
	NotifyDue(reminders []model.Reminder)
}

// ReminderWatcher 定期检查到期提醒，每条提醒只通知一次。
type ReminderWatcher struct {
	reminders ReminderService
	notifier  ReminderNotifier
	interval  time.Duration

	mu       sync.Mutex
	notified map[uint]struct{}
}

// NewReminderWatcher 创建一个新的 ReminderWatcher。notifier 可以为 nil，此时只记录日志。
func NewReminderWatcher(reminders ReminderService, notifier ReminderNotifier, interval time.Duration) *ReminderWatcher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReminderWatcher{
		reminders: reminders,
		notifier:  notifier,
		interval:  interval,
		notified:  make(map[uint]struct{}),
	}
}

// Run 阻塞运行直到 ctx 结束。
func (w *ReminderWatcher) Run(ctx context.Context) {
	log.Infof("[ReminderWatcher] 启动, 轮询间隔: %s", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info("[ReminderWatcher] 已停止")
			return
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll 检查一次到期提醒，返回本次新通知的提醒。
func (w *ReminderWatcher) Poll(ctx context.Context) []model.Reminder {
	pending, err := w.reminders.PendingReminders(ctx)
	if err != nil {
		log.Warnf("[ReminderWatcher] 查询到期提醒失败: %v", err)
		return nil
	}

	w.mu.Lock()
	var fresh []model.Reminder
	still := make(map[uint]struct{}, len(pending))
	for _, r := range pending {
		still[r.ID] = struct{}{}
		if _, ok := w.notified[r.ID]; ok {
			continue
		}
		w.notified[r.ID] = struct{}{}
		fresh = append(fresh, r)
	}
	// 已完成或已删除的提醒不再跟踪
	for id := range w.notified {
		if _, ok := still[id]; !ok {
			delete(w.notified, id)
		}
	}
	w.mu.Unlock()

	for _, r := range fresh {
		log.Infow("[ReminderWatcher] 提醒到期", "reminderId", r.ID, "ideaId", r.IdeaID, "dueAt", r.DueAt, "message", r.Message)
	}
	if len(fresh) > 0 && w.notifier != nil {
		w.notifier.NotifyDue(fresh)
	}
	return fresh
}
