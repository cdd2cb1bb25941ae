// Package app 负责组装应用的全部组件，供 HTTP 服务与命令行工具共用。
package app

import (
	"context"
	"errors"
	"fmt"
	"ideasystemx-go/internal/config"
	"ideasystemx-go/internal/handler"
	"ideasystemx-go/internal/model"
	"ideasystemx-go/internal/repository"
	"ideasystemx-go/internal/service"
	"ideasystemx-go/pkg/database"
	"ideasystemx-go/pkg/llm"
	"ideasystemx-go/pkg/log"
	"ideasystemx-go/pkg/secret"
	"ideasystemx-go/pkg/token"
	"ideasystemx-go/pkg/vectordb"

	"gorm.io/gorm"
)

// App 持有一次运行所需的全部组件。
type App struct {
	Config config.Config

	DB      *gorm.DB
	Vectors *vectordb.Store
	JWT     *token.JWTManager
	Hub     *handler.ReminderHub

	AI        service.AIService
	Ideas     service.IdeaService
	Reminders service.ReminderService
	Settings  service.SettingsService
	Watcher   *service.ReminderWatcher

	stopWatcher context.CancelFunc
	watcherDone chan struct{}
}

// Option 调整 App 的构建，主要用于测试注入 provider。
type Option func(*service.AIOptions)

// WithAIOptions 允许调用方修改 AIService 的构建参数。
func WithAIOptions(fn func(*service.AIOptions)) Option {
	return Option(fn)
}

// New 打开数据库与向量索引，构建服务并应用已保存的 AI 设置。
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repository.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	log.Info("数据库初始化成功")

	store, err := vectordb.Open(cfg.Vector.Path, cfg.Vector.Dimensions)
	if err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	log.Infof("向量索引已加载, 记录数: %d, 维度: %d", store.Count(), store.Dimensions())

	aiOpts := service.AIOptions{
		Dimensions:    cfg.Vector.Dimensions,
		LocalFallback: cfg.Vector.LocalFallback,
		Timeout:       cfg.AI.Timeout,
		CacheSize:     cfg.AI.CacheSize,
		Generation:    buildGenerationParams(cfg.AI.Generation),
	}
	for _, o := range opts {
		o(&aiOpts)
	}
	ai := service.NewAIService(aiOpts)

	ideaRepo := repository.NewIdeaRepository(db)
	reminderRepo := repository.NewReminderRepository(db)
	settingsRepo := repository.NewSettingsRepository(db, model.Settings{
		AIProvider:     cfg.AI.Provider,
		APIKey:         cfg.AI.APIKey,
		Model:          cfg.AI.Model,
		EmbeddingModel: cfg.AI.EmbeddingModel,
		Endpoint:       cfg.AI.Endpoint,
	})

	a := &App{
		Config:  cfg,
		DB:      db,
		Vectors: store,
		JWT:     token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours),
		Hub:     handler.NewReminderHub(),
		AI:      ai,
		Ideas: service.NewIdeaService(ideaRepo, reminderRepo, store, ai, service.IdeaOptions{
			RelatedThreshold:      cfg.AI.RelatedThreshold,
			LocalRelatedThreshold: cfg.Vector.LocalRelatedThreshold,
			RelatedLimit:          cfg.AI.RelatedLimit,
			AutoReminder:          cfg.AI.AutoReminder,
		}),
		Reminders: service.NewReminderService(reminderRepo, ideaRepo, nil),
		Settings:  service.NewSettingsService(settingsRepo, ai, secret.New(cfg.Security.SecretKey)),
	}
	a.Watcher = service.NewReminderWatcher(a.Reminders, a.Hub, cfg.Reminder.PollInterval)

	if err := a.Settings.Apply(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("apply AI settings: %w", err)
	}
	return a, nil
}

// buildGenerationParams 从配置构建生成参数，零值表示使用 provider 默认值。
func buildGenerationParams(cfg config.AIGenerationConfig) llm.GenerationParams {
	var gp llm.GenerationParams
	if cfg.Temperature != 0 {
		t := cfg.Temperature
		gp.Temperature = &t
	}
	if cfg.TopP != 0 {
		p := cfg.TopP
		gp.TopP = &p
	}
	if cfg.MaxTokens != 0 {
		m := cfg.MaxTokens
		gp.MaxTokens = &m
	}
	return gp
}

// Close 释放 provider 客户端、向量索引与数据库连接。
// StartWatcher 在后台运行到期提醒轮询，Close 会停止它并等待其退出。
func (a *App) StartWatcher(ctx context.Context) {
	if a.watcherDone != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	a.stopWatcher, a.watcherDone = cancel, done
	go func() {
		defer close(done)
		a.Watcher.Run(ctx)
	}()
}

func (a *App) Close() error {
	// 轮询退出后才能关闭数据库
	if a.stopWatcher != nil {
		a.stopWatcher()
		<-a.watcherDone
		a.stopWatcher = nil
	}

	var errList []error
	if a.AI != nil {
		errList = append(errList, a.AI.Close())
	}
	if a.Vectors != nil {
		errList = append(errList, a.Vectors.Close())
	}
	if a.DB != nil {
		errList = append(errList, database.Close(a.DB))
	}
	return errors.Join(errList...)
}
