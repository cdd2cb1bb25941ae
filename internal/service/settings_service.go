package service

import (
	"context"
	"fmt"
	"ideasystemx-go/internal/model"
	"ideasystemx-go/internal/repository"
	"ideasystemx-go/pkg/errs"
	"ideasystemx-go/pkg/log"
	"ideasystemx-go/pkg/secret"
	"strings"
)

// SettingsService 读写 AI 设置，保存后重新配置 AIService。
type SettingsService interface {
	// GetSettings 返回解密后的设置，调用方负责对外展示时遮盖 APIKey。
	GetSettings(ctx context.Context) (*model.Settings, error)
	SaveSettings(ctx context.Context, s model.Settings) (*model.Settings, error)
	Providers() []model.ProviderInfo
	// Apply 读取已保存的设置并应用到 AIService，启动时调用。
	Apply(ctx context.Context) error
}

type settingsService struct {
	repo repository.SettingsRepository
	ai   AIService
	box  *secret.Box
}

// NewSettingsService 创建一个新的 SettingsService 实例。
func NewSettingsService(repo repository.SettingsRepository, ai AIService, box *secret.Box) SettingsService {
	return &settingsService{repo: repo, ai: ai, box: box}
}

func (s *settingsService) GetSettings(ctx context.Context) (*model.Settings, error) {
	stored, err := s.repo.Get(ctx)
	if err != nil {
		return nil, err
	}
	key, err := s.box.Open(stored.APIKey)
	if err != nil {
		return nil, fmt.Errorf("decrypt api key: %v: %w", err, errs.ErrPersistence)
	}
	stored.APIKey = key
	return stored, nil
}

func (s *settingsService) Providers() []model.ProviderInfo {
	return Providers()
}

// SaveSettings 校验并保存设置。传回遮盖后的 APIKey 视为保持原值。
func (s *settingsService) SaveSettings(ctx context.Context, in model.Settings) (*model.Settings, error) {
	current, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	in.AIProvider = strings.ToLower(strings.TrimSpace(in.AIProvider))
	in.APIKey = strings.TrimSpace(in.APIKey)
	in.Model = strings.TrimSpace(in.Model)
	in.EmbeddingModel = strings.TrimSpace(in.EmbeddingModel)
	in.Endpoint = strings.TrimSpace(in.Endpoint)
	if in.APIKey != "" && current.APIKey != "" && in.APIKey == secret.Mask(current.APIKey) {
		in.APIKey = current.APIKey
	}

	if err := validateSettings(&in); err != nil {
		return nil, err
	}

	// 先应用，确认客户端能够创建后再持久化
	if err := s.ai.Reconfigure(in); err != nil {
		return nil, fmt.Errorf("%v: %w", err, errs.ErrValidation)
	}

	sealed := in
	sealed.APIKey, err = s.box.Seal(in.APIKey)
	if err != nil {
		s.restore(*current)
		return nil, fmt.Errorf("encrypt api key: %w", err)
	}
	if err := s.repo.Save(ctx, &sealed); err != nil {
		s.restore(*current)
		return nil, fmt.Errorf("save settings: %v: %w", err, errs.ErrPersistence)
	}
	log.Infof("[SettingsService] 设置已保存, provider: %q, model: %q", in.AIProvider, in.Model)
	return &in, nil
}

func (s *settingsService) restore(previous model.Settings) {
	if err := s.ai.Reconfigure(previous); err != nil {
		log.Errorf("[SettingsService] 恢复原有 AI 设置失败: %v", err)
	}
}

// validateSettings 校验设置并补全默认的向量模型。provider 为空表示关闭 AI。
func validateSettings(in *model.Settings) error {
	if in.AIProvider == "" {
		return nil
	}
	info, ok := lookupProvider(in.AIProvider)
	if !ok {
		return fmt.Errorf("unknown AI provider %q: %w", in.AIProvider, errs.ErrValidation)
	}
	if info.RequiresAPIKey && in.APIKey == "" {
		return fmt.Errorf("provider %s requires an API key: %w", info.Name, errs.ErrValidation)
	}
	if in.Model == "" {
		return fmt.Errorf("model is required: %w", errs.ErrValidation)
	}
	if info.RequiresEndpoint && in.Endpoint == "" {
		return fmt.Errorf("provider %s requires an endpoint: %w", info.Name, errs.ErrValidation)
	}
	if in.EmbeddingModel == "" && info.SupportsEmbedding {
		in.EmbeddingModel = info.DefaultEmbeddingModel
	}
	return nil
}

func (s *settingsService) Apply(ctx context.Context) error {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return err
	}
	if err := s.ai.Reconfigure(*settings); err != nil {
		// 已保存的设置无法使用时退回未配置状态，本地功能仍可用
		log.Warnf("[SettingsService] 应用已保存的 AI 设置失败: %v", err)
		return s.ai.Reconfigure(model.Settings{})
	}
	return nil
}
