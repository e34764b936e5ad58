package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ConfigPathEnv は設定ファイルパスを指定する環境変数
const ConfigPathEnv = "NBAGENT_CONFIG"

// Config はアプリケーション全体の設定
type Config struct {
	Ollama     OllamaConfig     `yaml:"ollama"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Claude     ClaudeConfig     `yaml:"claude"`
	DeepSeek   DeepSeekConfig   `yaml:"deepseek"`
	Agent      AgentConfig      `yaml:"agent"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Tools      ToolsConfig      `yaml:"tools"`
	Session    SessionConfig    `yaml:"session"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// OllamaConfig はOllama設定
type OllamaConfig struct {
	BaseURL string        `yaml:"base_url" env:"NBAGENT_OLLAMA_BASE_URL"`
	Model   string        `yaml:"model" env:"NBAGENT_OLLAMA_MODEL"`
	Timeout time.Duration `yaml:"timeout" env:"NBAGENT_OLLAMA_TIMEOUT"`
}

// OpenAIConfig はOpenAI API設定
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key" env:"OPENAI_API_KEY"` // 環境変数から読み込み推奨
	Model   string `yaml:"model" env:"NBAGENT_OPENAI_MODEL"`
	BaseURL string `yaml:"base_url" env:"NBAGENT_OPENAI_BASE_URL"`
}

// ClaudeConfig はClaude API設定
type ClaudeConfig struct {
	APIKey string `yaml:"api_key" env:"ANTHROPIC_API_KEY"` // 環境変数から読み込み推奨
	Model  string `yaml:"model" env:"NBAGENT_CLAUDE_MODEL"`
}

// DeepSeekConfig はDeepSeek API設定
type DeepSeekConfig struct {
	APIKey string `yaml:"api_key" env:"DEEPSEEK_API_KEY"` // 環境変数から読み込み推奨
	Model  string `yaml:"model" env:"NBAGENT_DEEPSEEK_MODEL"`
}

// AgentConfig はエージェントループ設定（Temperature は全プロバイダ共通、既定 0）
type AgentConfig struct {
	MaxIterations int     `yaml:"max_iterations" env:"NBAGENT_AGENT_MAX_ITERATIONS"`
	MaxTokens     int     `yaml:"max_tokens" env:"NBAGENT_AGENT_MAX_TOKENS"`
	Temperature   float64 `yaml:"temperature" env:"NBAGENT_AGENT_TEMPERATURE"`
	HistoryWindow int     `yaml:"history_window" env:"NBAGENT_AGENT_HISTORY_WINDOW"`
}

// ClassifierConfig は分類パイプライン設定
type ClassifierConfig struct {
	OutputPath string  `yaml:"output_path" env:"NBAGENT_CLASSIFIER_OUTPUT_PATH"`
	TrainRatio float64 `yaml:"train_ratio" env:"NBAGENT_CLASSIFIER_TRAIN_RATIO"`
	MinSamples int     `yaml:"min_samples" env:"NBAGENT_CLASSIFIER_MIN_SAMPLES"`
	C          float64 `yaml:"c" env:"NBAGENT_CLASSIFIER_C"`
}

// ToolsConfig はツール実行設定
type ToolsConfig struct {
	Workspace   string        `yaml:"workspace" env:"NBAGENT_TOOLS_WORKSPACE"`
	AllowExec   bool          `yaml:"allow_exec" env:"NBAGENT_TOOLS_ALLOW_EXEC"`
	ExecTimeout time.Duration `yaml:"exec_timeout" env:"NBAGENT_TOOLS_EXEC_TIMEOUT"`
}

// SessionConfig はセッション設定
type SessionConfig struct {
	ID         string `yaml:"id" env:"NBAGENT_SESSION_ID"`
	StorageDir string `yaml:"storage_dir" env:"NBAGENT_SESSION_STORAGE_DIR"`
}

// LogConfig はログ設定
type LogConfig struct {
	Level  string `yaml:"level" env:"NBAGENT_LOG_LEVEL"`
	Format string `yaml:"format" env:"NBAGENT_LOG_FORMAT"`
	File   string `yaml:"file" env:"NBAGENT_LOG_FILE"`
}

// MetricsConfig はPrometheusエンドポイント設定（Addr が空なら無効）
type MetricsConfig struct {
	Addr string `yaml:"addr" env:"NBAGENT_METRICS_ADDR"`
}

// Load は設定を読み込む
// path が空なら NBAGENT_CONFIG を参照し、ファイルがなければデフォルト値で起動する
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = os.Getenv(ConfigPathEnv)
		explicit = path != ""
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			// YAMLパース
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config YAML: %w", err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 環境変数で上書き
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	// デフォルト値設定
	cfg.setDefaults()

	// バリデーション
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Default はデフォルト値のみの設定を返す
func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

// setDefaults はデフォルト値を設定
func (c *Config) setDefaults() {
	if c.Ollama.BaseURL == "" {
		c.Ollama.BaseURL = "http://localhost:11434"
	}
	if c.Ollama.Model == "" {
		c.Ollama.Model = "mistral"
	}
	if c.Ollama.Timeout == 0 {
		c.Ollama.Timeout = 300 * time.Second
	}

	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.Claude.Model == "" {
		c.Claude.Model = "claude-sonnet-4-20250514"
	}
	if c.DeepSeek.Model == "" {
		c.DeepSeek.Model = "deepseek-chat"
	}

	if c.Agent.MaxIterations == 0 {
		c.Agent.MaxIterations = 10
	}
	if c.Agent.MaxTokens == 0 {
		c.Agent.MaxTokens = 4096
	}
	if c.Agent.HistoryWindow == 0 {
		c.Agent.HistoryWindow = 40
	}

	if c.Classifier.OutputPath == "" {
		c.Classifier.OutputPath = "sol.csv"
	}
	if c.Classifier.TrainRatio == 0 {
		c.Classifier.TrainRatio = 0.8
	}
	if c.Classifier.MinSamples == 0 {
		c.Classifier.MinSamples = 10
	}
	if c.Classifier.C == 0 {
		c.Classifier.C = 1.0
	}

	if c.Tools.Workspace == "" {
		c.Tools.Workspace = "."
	}
	if c.Tools.ExecTimeout == 0 {
		c.Tools.ExecTimeout = 30 * time.Second
	}

	if c.Session.ID == "" {
		c.Session.ID = "thread-1"
	}
	if c.Session.StorageDir == "" {
		c.Session.StorageDir = ".nbagent/sessions"
	}

	if c.Log.Level == "" {
		c.Log.Level = "warn"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

// Validate は設定の妥当性を検証
func (c *Config) Validate() error {
	// Ollama設定検証
	if !strings.HasPrefix(c.Ollama.BaseURL, "http://") && !strings.HasPrefix(c.Ollama.BaseURL, "https://") {
		return fmt.Errorf("ollama base_url must start with http:// or https://: %q", c.Ollama.BaseURL)
	}
	if c.Ollama.Model == "" {
		return fmt.Errorf("ollama model is required")
	}

	// エージェント設定検証
	if c.Agent.MaxIterations < 1 {
		return fmt.Errorf("invalid agent max_iterations: %d (must be >= 1)", c.Agent.MaxIterations)
	}
	if c.Agent.Temperature < 0 || c.Agent.Temperature > 2 {
		return fmt.Errorf("invalid agent temperature: %v (must be 0-2)", c.Agent.Temperature)
	}

	// 分類設定検証
	if c.Classifier.TrainRatio <= 0 || c.Classifier.TrainRatio >= 1 {
		return fmt.Errorf("invalid classifier train_ratio: %v (must be between 0 and 1)", c.Classifier.TrainRatio)
	}
	if c.Classifier.MinSamples < 1 {
		return fmt.Errorf("invalid classifier min_samples: %d", c.Classifier.MinSamples)
	}
	if c.Classifier.C <= 0 {
		return fmt.Errorf("invalid classifier c: %v (must be > 0)", c.Classifier.C)
	}

	// セッション設定検証
	if c.Session.StorageDir == "" {
		return fmt.Errorf("session storage_dir is required")
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %q (must be json or console)", c.Log.Format)
	}

	return nil
}
