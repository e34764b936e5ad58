package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Nyukimin/nbagent/internal/adapter/cli"
	"github.com/Nyukimin/nbagent/internal/application/classifier"
	"github.com/Nyukimin/nbagent/internal/application/orchestrator"
	"github.com/Nyukimin/nbagent/internal/domain/agent"
	"github.com/Nyukimin/nbagent/internal/domain/llm"
	"github.com/Nyukimin/nbagent/internal/infrastructure/llm/claude"
	"github.com/Nyukimin/nbagent/internal/infrastructure/llm/deepseek"
	"github.com/Nyukimin/nbagent/internal/infrastructure/llm/instrumented"
	"github.com/Nyukimin/nbagent/internal/infrastructure/llm/ollama"
	"github.com/Nyukimin/nbagent/internal/infrastructure/llm/openai"
	"github.com/Nyukimin/nbagent/internal/infrastructure/persistence/session"
	"github.com/Nyukimin/nbagent/internal/infrastructure/tools"
	"github.com/Nyukimin/nbagent/pkg/health"
	"github.com/Nyukimin/nbagent/pkg/jobid"
	"github.com/Nyukimin/nbagent/pkg/logger"
	"github.com/Nyukimin/nbagent/pkg/metrics"
)

const healthTimeout = 5 * time.Second

var errNoAgent = errors.New(noAgentMessage)

// classifierConfig は設定から分類パイプライン設定を組み立てる
func (a *app) classifierConfig() classifier.Config {
	return classifier.Config{
		OutputPath: a.cfg.Classifier.OutputPath,
		TrainRatio: a.cfg.Classifier.TrainRatio,
		MinSamples: a.cfg.Classifier.MinSamples,
		C:          a.cfg.Classifier.C,
	}
}

// buildProvider はプロバイダ名からLLMProviderを構築
func (a *app) buildProvider(name string) (llm.LLMProvider, error) {
	cfg := a.cfg
	switch strings.ToLower(name) {
	case "ollama":
		p := ollama.NewOllamaProvider(cfg.Ollama.BaseURL, cfg.Ollama.Model)
		p.SetTimeout(cfg.Ollama.Timeout)
		logger.DebugCF("main", "Ollama provider configured", map[string]interface{}{
			"base_url": cfg.Ollama.BaseURL,
			"model":    p.Model(),
		})
		return p, nil

	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("openai requires OPENAI_API_KEY")
		}
		p := openai.NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
		if cfg.OpenAI.BaseURL != "" {
			p.SetBaseURL(cfg.OpenAI.BaseURL)
		}
		return p, nil

	case "claude":
		if cfg.Claude.APIKey == "" {
			return nil, fmt.Errorf("claude requires ANTHROPIC_API_KEY")
		}
		return claude.NewClaudeProvider(cfg.Claude.APIKey, cfg.Claude.Model), nil

	case "deepseek":
		if cfg.DeepSeek.APIKey == "" {
			return nil, fmt.Errorf("deepseek requires DEEPSEEK_API_KEY")
		}
		return deepseek.NewDeepSeekProvider(cfg.DeepSeek.APIKey, cfg.DeepSeek.Model), nil
	}
	return nil, errNoAgent
}

// checkOllama はチャット開始前にOllamaとモデルの状態を確認
func (a *app) checkOllama(out io.Writer) error {
	results, ok := health.RunAll([]health.Check{
		{Name: "ollama", Fn: health.OllamaCheck(a.cfg.Ollama.BaseURL, healthTimeout)},
		{Name: "model", Fn: health.OllamaModelCheck(a.cfg.Ollama.BaseURL, healthTimeout, a.cfg.Ollama.Model)},
	})
	for _, r := range results {
		logger.DebugCF("main", "Health check", map[string]interface{}{
			"check":   r.Name,
			"ok":      r.OK,
			"message": r.Message,
		})
	}
	if ok {
		return nil
	}
	for _, r := range results {
		if !r.OK {
			fmt.Fprintf(out, "✗ %s: %s\n", r.Name, r.Message)
		}
	}
	return fmt.Errorf("ollama is not ready at %s", a.cfg.Ollama.BaseURL)
}

// runChat は依存関係を構築して対話ループを開始する
func (a *app) runChat(ctx context.Context, out io.Writer, providerName string) error {
	cfg := a.cfg

	// 1. LLM Provider
	provider, err := a.buildProvider(providerName)
	if errors.Is(err, errNoAgent) {
		fmt.Fprintln(out, noAgentMessage)
		return nil
	}
	if err != nil {
		return err
	}
	if strings.EqualFold(providerName, "ollama") {
		if err := a.checkOllama(out); err != nil {
			return err
		}
	}

	m := metrics.Default()
	stopMetrics := startMetricsServer(cfg.Metrics.Addr, m)
	defer stopMetrics()

	// 2. Classifier pipeline + Tools
	pipeline := classifier.NewPipeline(a.classifierConfig(), m, jobid.NewGenerator(jobid.DefaultPrefix))
	runner := tools.NewToolRunner(tools.Config{
		Workspace:   cfg.Tools.Workspace,
		AllowExec:   cfg.Tools.AllowExec,
		ExecTimeout: cfg.Tools.ExecTimeout,
	}, pipeline, m)

	// 3. Agent
	positionAgent := agent.NewPositionAgent(instrumented.Wrap(provider, m), runner, agent.Config{
		MaxIterations: cfg.Agent.MaxIterations,
		MaxTokens:     cfg.Agent.MaxTokens,
		Temperature:   cfg.Agent.Temperature,
	})

	// 4. Session Repository + Orchestrator
	sessionRepo := session.NewJSONSessionRepository(cfg.Session.StorageDir)

	// セッションディレクトリ作成（readline履歴もここに置く）
	if err := os.MkdirAll(cfg.Session.StorageDir, 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	orch := orchestrator.NewConversationOrchestrator(sessionRepo, positionAgent, cfg.Agent.HistoryWindow)

	logger.InfoCF("main", "Dependency injection complete", map[string]interface{}{
		"provider": provider.Name(),
		"session":  cfg.Session.ID,
	})

	// 5. Adapter (CLI)
	repl := cli.NewREPL(orch, runner, cli.Config{
		Provider:    strings.ToLower(providerName),
		SessionID:   cfg.Session.ID,
		HistoryFile: filepath.Join(cfg.Session.StorageDir, "history"),
	}, out)
	return repl.Run(ctx)
}

// startMetricsServer は addr が設定されていれば /metrics を公開する
func startMetricsServer(addr string, m *metrics.Manager) func() {
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorCF("main", "Metrics server failed", map[string]interface{}{
				"addr":  addr,
				"error": err.Error(),
			})
		}
	}()
	logger.InfoCF("main", "Metrics server started", map[string]interface{}{"addr": addr})

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
