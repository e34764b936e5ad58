package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Nyukimin/nbagent/internal/adapter/config"
	"github.com/Nyukimin/nbagent/pkg/logger"
)

const noAgentMessage = "no available agent! Try nbagent ollama|openai|claude|deepseek"

func main() {
	os.Exit(run())
}

// run は os.Exit の前に defer を実行させるため main から分離
func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer logger.Sync()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// app はサブコマンド間で共有する状態
type app struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "nbagent [provider]",
		Short: "NBA player position classification agent",
		Long: `nbagent trains an SVM on NBA player statistics and predicts player positions
(PG, SG, SF, PF, C). Run it as a conversational tool-calling agent on top of an LLM
(ollama, openai, claude, deepseek) or call the classifier and grader directly.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// 旧形式: nbagent <provider>
			if len(args) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), noAgentMessage)
				return nil
			}
			return a.runChat(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to config.yaml (default $"+config.ConfigPathEnv+")")

	root.AddCommand(
		newChatCmd(a),
		newClassifyCmd(a),
		newGradeCmd(a),
	)
	return root
}

// load は設定を読み込みロガーを初期化する
func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := logger.Init(logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	}); err != nil {
		return err
	}
	logger.DebugCF("main", "Config loaded", map[string]interface{}{
		"ollama_model": cfg.Ollama.Model,
		"workspace":    cfg.Tools.Workspace,
		"session_dir":  cfg.Session.StorageDir,
	})
	return nil
}
