package deepseek

import (
	"github.com/Nyukimin/nbagent/internal/infrastructure/llm/openai"
)

const defaultBaseURL = "https://api.deepseek.com/v1/"

// DeepSeekProvider はDeepSeek APIプロバイダーの実装
// DeepSeek APIはOpenAI互換のため、OpenAIProviderにベースURLを差し替えて委譲する
type DeepSeekProvider struct {
	*openai.OpenAIProvider
}

// NewDeepSeekProvider は新しいDeepSeekProviderを作成
func NewDeepSeekProvider(apiKey, model string) *DeepSeekProvider {
	return &DeepSeekProvider{
		OpenAIProvider: openai.NewCompatibleProvider("deepseek", apiKey, model, defaultBaseURL),
	}
}
