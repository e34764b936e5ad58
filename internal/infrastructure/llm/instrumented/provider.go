// Package instrumented はLLMプロバイダーにメトリクスとログを付与する
package instrumented

import (
	"context"
	"time"

	"github.com/Nyukimin/nbagent/internal/domain/llm"
	"github.com/Nyukimin/nbagent/pkg/logger"
	"github.com/Nyukimin/nbagent/pkg/metrics"
)

const component = "llm"

// Provider は Generate 呼び出しごとのレイテンシと結果を記録する
type Provider struct {
	inner   llm.LLMProvider
	metrics *metrics.Manager
}

// Wrap は inner をメトリクス付きでラップする
// m が nil の場合は metrics.Default() を使う
func Wrap(inner llm.LLMProvider, m *metrics.Manager) *Provider {
	if m == nil {
		m = metrics.Default()
	}
	return &Provider{inner: inner, metrics: m}
}

// Generate は内側のプロバイダーを呼び出し、所要時間とエラーを記録する
func (p *Provider) Generate(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	start := time.Now()
	resp, err := p.inner.Generate(ctx, req)
	elapsed := time.Since(start)

	p.metrics.RecordLLMRequest(p.inner.Name(), err, elapsed)

	if err != nil {
		logger.WarnCF(component, "generate failed", map[string]interface{}{
			"provider": p.inner.Name(),
			"elapsed":  elapsed.String(),
			"error":    err.Error(),
		})
		return resp, err
	}

	logger.DebugCF(component, "generate completed", map[string]interface{}{
		"provider":   p.inner.Name(),
		"elapsed":    elapsed.String(),
		"tokens":     resp.TokensUsed,
		"tool_calls": len(resp.ToolCalls),
		"finish":     resp.FinishReason,
	})
	return resp, nil
}

// Name は内側のプロバイダー名を返す
func (p *Provider) Name() string {
	return p.inner.Name()
}
