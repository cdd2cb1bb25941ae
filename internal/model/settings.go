package model

import (
	"time"

	"gorm.io/datatypes"
)

// SettingsRowID 是设置表中唯一一行的主键。
const SettingsRowID = 1

// SettingsRecord 对应于数据库中的 'settings' 表，整份设置以 JSON 存放在单行中。
type SettingsRecord struct {
	ID        uint           `gorm:"primaryKey"`
	Settings  datatypes.JSON `gorm:"column:settings_json"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (SettingsRecord) TableName() string {
	return "settings"
}

// Settings 是用户的 AI provider 设置。
type Settings struct {
	AIProvider     string `json:"aiProvider"`
	APIKey         string `json:"apiKey"`
	Model          string `json:"model"`
	EmbeddingModel string `json:"embeddingModel"`
	Endpoint       string `json:"endpoint,omitempty"`
}

// ProviderInfo 描述一个可选的 AI provider。
type ProviderInfo struct {
	Name                  string `json:"name"`
	Label                 string `json:"label"`
	DefaultModel          string `json:"defaultModel"`
	DefaultEmbeddingModel string `json:"defaultEmbeddingModel,omitempty"`
	RequiresAPIKey        bool   `json:"requiresApiKey"`
	RequiresEndpoint      bool   `json:"requiresEndpoint"`
	SupportsEmbedding     bool   `json:"supportsEmbedding"`
}

// AIStatus 描述当前 AI 配置的可用状态。
type AIStatus struct {
	Configured     bool   `json:"configured"`
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	EmbeddingModel string `json:"embeddingModel"`
	EmbeddingLocal bool   `json:"embeddingLocal"`
}
