// Package service 包含了应用的业务逻辑层。
package service

import (
	"ideasystemx-go/internal/model"
	"ideasystemx-go/pkg/embedding"
	"ideasystemx-go/pkg/llm"
)

// providerCatalog 是设置页可选的 provider 及其默认模型。
var providerCatalog = []model.ProviderInfo{
	{
		Name:                  "openai",
		Label:                 "OpenAI",
		DefaultModel:          "gpt-3.5-turbo",
		DefaultEmbeddingModel: "text-embedding-ada-002",
		RequiresAPIKey:        true,
	},
	{
		Name:                  "azure",
		Label:                 "Azure OpenAI",
		DefaultModel:          "gpt-35-turbo",
		DefaultEmbeddingModel: "text-embedding-ada-002",
		RequiresAPIKey:        true,
		RequiresEndpoint:      true,
	},
	{
		Name:           "anthropic",
		Label:          "Anthropic",
		DefaultModel:   "claude-3-5-haiku-latest",
		RequiresAPIKey: true,
	},
	{
		Name:                  "ollama",
		Label:                 "Ollama",
		DefaultModel:          "llama3",
		DefaultEmbeddingModel: "nomic-embed-text",
	},
	{
		Name:                  "gemini",
		Label:                 "Google Gemini",
		DefaultModel:          "gemini-1.5-flash",
		DefaultEmbeddingModel: "text-embedding-004",
		RequiresAPIKey:        true,
	},
	{
		Name:                  "compatible",
		Label:                 "OpenAI-compatible",
		DefaultModel:          "deepseek-chat",
		DefaultEmbeddingModel: "",
		RequiresEndpoint:      true,
	},
}

// Providers 返回已注册 provider 的目录。
func Providers() []model.ProviderInfo {
	out := make([]model.ProviderInfo, 0, len(providerCatalog))
	for _, p := range providerCatalog {
		if !llm.Supports(p.Name) {
			continue
		}
		p.SupportsEmbedding = embedding.Supports(p.Name)
		out = append(out, p)
	}
	return out
}

func lookupProvider(name string) (model.ProviderInfo, bool) {
	for _, p := range Providers() {
		if p.Name == name {
			return p, true
		}
	}
	return model.ProviderInfo{}, false
}

// IsConfigured 判断设置是否足以调用 AI：选择了 provider，且提供了 API Key 或该 provider 不需要 Key。
func IsConfigured(s model.Settings) bool {
	if s.AIProvider == "" {
		return false
	}
	info, ok := lookupProvider(s.AIProvider)
	if !ok {
		return false
	}
	return s.APIKey != "" || !info.RequiresAPIKey
}
