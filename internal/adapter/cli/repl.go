package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/Nyukimin/nbagent/internal/application/orchestrator"
	"github.com/Nyukimin/nbagent/internal/domain/agent"
	"github.com/Nyukimin/nbagent/internal/domain/tool"
	"github.com/Nyukimin/nbagent/pkg/logger"
)

const (
	component = "cli"

	Prompt     = "user: "
	Goodbye    = "have a nice day! :wave:"
	Checkpoint = "✓ memory checkpoint created"

	DefaultCSV = "nba_player_stats.csv"
)

const helpText = `Commands:
  /help             show this help
  /tools            list available tools
  /reset            clear conversation memory
  /classify [csv]   run the SVM classifier directly (default nba_player_stats.csv)
  /read [csv]       preview a CSV file
  q                 quit

Anything else is sent to the agent.`

// Conversation はREPLから見た会話処理
type Conversation interface {
	ProcessMessage(ctx context.Context, req orchestrator.ProcessMessageRequest, observer agent.Observer) (orchestrator.ProcessMessageResponse, error)
	Reset(ctx context.Context, sessionID string) error
}

// Tools はスラッシュコマンドから直接呼ぶツール実行
type Tools interface {
	Execute(ctx context.Context, toolName string, args map[string]interface{}) (tool.Result, error)
	List(ctx context.Context) ([]string, error)
}

// Config はREPL設定
type Config struct {
	Provider    string
	SessionID   string
	HistoryFile string
	DefaultCSV  string
	Width       int
}

// REPL は対話型のエージェントCLI
type REPL struct {
	conv   Conversation
	tools  Tools
	config Config
	out    io.Writer
	now    func() time.Time
}

// NewREPL は新しいREPLを作成
func NewREPL(conv Conversation, tools Tools, cfg Config, out io.Writer) *REPL {
	if cfg.DefaultCSV == "" {
		cfg.DefaultCSV = DefaultCSV
	}
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if out == nil {
		out = os.Stdout
	}
	return &REPL{
		conv:   conv,
		tools:  tools,
		config: cfg,
		out:    out,
		now:    time.Now,
	}
}

// Run はreadlineで入力を読み、q か EOF まで処理を続ける
func (r *REPL) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          Prompt,
		HistoryFile:     r.config.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "q",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	r.out = rl.Stdout()
	fmt.Fprintln(r.out, Banner(r.config.Provider))
	fmt.Fprintln(r.out, "Type /help for commands, q to quit.")

	for {
		line, err := rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			if line == "" {
				fmt.Fprintln(r.out, Goodbye)
				return nil
			}
			continue
		case errors.Is(err, io.EOF):
			fmt.Fprintln(r.out, Goodbye)
			return nil
		case err != nil:
			return fmt.Errorf("failed to read input: %w", err)
		}

		if quit := r.Handle(ctx, line); quit {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Handle は1行の入力を処理し、終了すべきなら true を返す
func (r *REPL) Handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false
	case strings.EqualFold(line, "q"):
		fmt.Fprintln(r.out, Goodbye)
		return true
	case strings.HasPrefix(line, "/"):
		r.handleCommand(ctx, line)
		return false
	}

	r.chat(ctx, line)
	return false
}

// chat はエージェントに1ターン処理させ、イベントをパネル表示する
func (r *REPL) chat(ctx context.Context, text string) {
	observer := agent.ObserverFunc(func(ctx context.Context, ev agent.Event) {
		r.printEvent(ev)
	})

	resp, err := r.conv.ProcessMessage(ctx, orchestrator.ProcessMessageRequest{
		SessionID:   r.config.SessionID,
		UserMessage: text,
	}, observer)
	if err != nil {
		logger.WarnCF(component, "Turn failed", map[string]interface{}{
			"job_id": resp.JobID,
			"error":  err.Error(),
		})
		r.printError(err)
		return
	}

	logger.DebugCF(component, "Turn completed", map[string]interface{}{
		"job_id":     resp.JobID,
		"tools":      resp.ToolsUsed,
		"iterations": resp.Iterations,
	})
	if resp.Checkpointed {
		fmt.Fprintln(r.out, Checkpoint)
	}
}

// handleCommand はスラッシュコマンドを処理
func (r *REPL) handleCommand(ctx context.Context, line string) {
	fields := strings.Fields(line)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "/help":
		fmt.Fprintln(r.out, helpText)

	case "/tools":
		names, err := r.tools.List(ctx)
		if err != nil {
			r.printError(err)
			return
		}
		fmt.Fprintln(r.out, Panel("tools", strings.Join(names, "\n"), r.config.Width))

	case "/reset":
		if err := r.conv.Reset(ctx, r.config.SessionID); err != nil {
			r.printError(err)
			return
		}
		fmt.Fprintln(r.out, "✓ memory cleared")

	case "/classify":
		r.runTool(ctx, "create_classifier", r.csvArg(args))

	case "/read":
		r.runTool(ctx, "read_csv", r.csvArg(args))

	default:
		r.printError(fmt.Errorf("unknown command %s (try /help)", cmd))
	}
}

func (r *REPL) csvArg(args []string) string {
	if len(args) > 0 {
		return strings.Join(args, " ")
	}
	return r.config.DefaultCSV
}

// runTool はLLMを介さずにツールを直接実行する
func (r *REPL) runTool(ctx context.Context, name, path string) {
	result, err := r.tools.Execute(ctx, name, map[string]interface{}{"filepath": path})
	content := result.Display()
	if content == "" && err != nil {
		content = err.Error()
	}
	r.printEvent(agent.Event{
		Kind:    agent.EventTool,
		Tool:    name,
		Content: content,
		IsError: result.IsError || err != nil,
		Time:    r.now(),
	})
}

func (r *REPL) printEvent(ev agent.Event) {
	ts := ev.Time
	if ts.IsZero() {
		ts = r.now()
	}
	stamp := ts.Format(timestampLayout)

	var title string
	switch ev.Kind {
	case agent.EventTool:
		title = fmt.Sprintf("tool %s %s", ev.Tool, stamp)
	default:
		title = fmt.Sprintf("agent %s", stamp)
	}
	fmt.Fprintln(r.out, Panel(title, ev.Content, r.config.Width))
}

func (r *REPL) printError(err error) {
	title := fmt.Sprintf("error %s", r.now().Format(timestampLayout))
	fmt.Fprintln(r.out, Panel(title, err.Error(), r.config.Width))
}
