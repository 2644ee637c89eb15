// Command recall-hook is the external hook-protocol entry point. It reads a
// single JSON object from stdin ({"prompt": "...", "session_id": "..."}),
// runs one turn of the memory engine, and writes one line of JSON to stdout
// carrying the context to inject into the assistant's conversation. It never
// fails the host: once flags and config have parsed, every error is logged
// to stderr and the process still exits 0 with empty stdout.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/halcyon-ai/recall/internal/config"
	"github.com/halcyon-ai/recall/internal/convstate"
	"github.com/halcyon-ai/recall/internal/engine"
	"github.com/halcyon-ai/recall/internal/health"
	"github.com/halcyon-ai/recall/internal/observe"
	"github.com/halcyon-ai/recall/internal/provider/chat/httpchat"
	"github.com/halcyon-ai/recall/internal/provider/embed/httpembed"
	"github.com/halcyon-ai/recall/internal/resilience"
	"github.com/halcyon-ai/recall/internal/store/sqlite"
	"github.com/halcyon-ai/recall/pkg/provider/embeddings"
	"github.com/halcyon-ai/recall/pkg/provider/llm"

	"go.opentelemetry.io/otel"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	healthcheck := flag.Bool("healthcheck", false, "open the graph store and report OK/FAIL, then exit")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "recall-hook: load config: %v\n", err)
		if *healthcheck {
			fmt.Printf(`{"status":"fail","check":"config","error":%q}`+"\n", err.Error())
			return 1
		}
		return 0
	}

	slog.SetDefault(newLogger(cfg.Server.LogLevel))

	if *healthcheck {
		return runHealthcheck(*configPath, cfg)
	}

	if err := runHook(cfg); err != nil {
		slog.Error("recall-hook: fatal, emitting no context", "err", err)
	}
	return 0
}

// runHealthcheck opens the graph store file and reports OK/FAIL on stdout,
// returning a process exit code suitable for scripting (0 OK, 1 FAIL).
// Unlike the hook path this is an operator diagnostic, not the hook
// protocol, so it is allowed to fail loudly.
func runHealthcheck(configPath string, cfg *config.Config) int {
	checker := health.Checker{
		Name: "graph_store",
		Check: func(ctx context.Context) error {
			store, err := sqlite.OpenStore(ctx, cfg.Store.GraphPath)
			if err != nil {
				return err
			}
			return store.Close()
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := checker.Check(ctx); err != nil {
		fmt.Printf(`{"status":"fail","check":%q,"error":%q}`+"\n", checker.Name, err.Error())
		return 1
	}
	fmt.Printf(`{"status":"ok","check":%q,"config":%q}`+"\n", checker.Name, configPath)
	return 0
}

// hookInput is the JSON object recall-hook expects on stdin.
type hookInput struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id"`
}

// hookOutput is the JSON object recall-hook writes to stdout on success.
type hookOutput struct {
	HookSpecificOutput hookSpecificOutput `json:"hookSpecificOutput"`
}

type hookSpecificOutput struct {
	HookEventName     string `json:"hookEventName"`
	AdditionalContext string `json:"additionalContext"`
}

// runHook wires up every dependency and processes exactly one turn. Any
// error it returns is logged by the caller; the caller always exits 0.
func runHook(cfg *config.Config) error {
	var in hookInput
	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	if err := json.Unmarshal(bytes.TrimSpace(raw), &in); err != nil {
		return fmt.Errorf("parse stdin: %w", err)
	}
	if in.Prompt == "" {
		return fmt.Errorf("stdin missing required field \"prompt\"")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Budgets.Layer2Timeout*3)
	defer cancel()

	reg := config.NewRegistry()
	reg.RegisterChat("http", func(e config.ProviderEntry) (llm.Provider, error) {
		return httpchat.New(httpchat.Config{
			BaseURL: e.BaseURL, APIKey: e.APIKey, Model: e.Model,
			Timeout: e.Timeout, MaxRetries: cfg.Budgets.MaxRetries, RetryDelay: cfg.Budgets.RetryDelay,
		}), nil
	})
	reg.RegisterEmbeddings("http", func(e config.ProviderEntry) (embeddings.Provider, error) {
		return httpembed.New(httpembed.Config{
			BaseURL: e.BaseURL, APIKey: e.APIKey, Model: e.Model,
			Timeout: e.Timeout, MaxRetries: cfg.Budgets.MaxRetries, RetryDelay: cfg.Budgets.RetryDelay,
		}), nil
	})

	chat, err := reg.CreateChat(cfg.Providers.Chat)
	if err != nil {
		return fmt.Errorf("create chat provider: %w", err)
	}
	chat, err = withChatFallbacks(reg, cfg, chat)
	if err != nil {
		return err
	}

	embed, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
	if err != nil {
		return fmt.Errorf("create embeddings provider: %w", err)
	}
	embed, err = withEmbedFallbacks(reg, cfg, embed)
	if err != nil {
		return err
	}

	store, err := sqlite.OpenStore(ctx, cfg.Store.GraphPath)
	if err != nil {
		return fmt.Errorf("open graph store: %w", err)
	}
	defer store.Close()

	convo := convstate.NewStore(cfg.Store.ConversationStatePath, cfg.Budgets.MaxTurnsKept)

	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "recall-hook"})
	if err != nil {
		slog.Warn("recall-hook: metrics init failed, continuing without them", "err", err)
	} else {
		defer shutdownMetrics(ctx)
	}

	eng, err := engine.New(chat, embed, store, convo, otel.GetMeterProvider(), cfg.Budgets)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	out, err := eng.Process(ctx, in.Prompt, in.SessionID)
	if err != nil {
		return fmt.Errorf("process turn: %w", err)
	}

	memoryContext := renderContext(out)
	if memoryContext == "" {
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(hookOutput{
		HookSpecificOutput: hookSpecificOutput{
			HookEventName:     "UserPromptSubmit",
			AdditionalContext: memoryContext,
		},
	})
}

// withChatFallbacks wraps primary in a [resilience.ChatFallback] when the
// config names any fallback_chat entries, so a tripped primary circuit
// breaker fails over to the next configured backend instead of failing the
// turn outright.
func withChatFallbacks(reg *config.Registry, cfg *config.Config, primary llm.Provider) (llm.Provider, error) {
	if len(cfg.Providers.FallbackChat) == 0 {
		return primary, nil
	}
	group := resilience.NewChatFallback(primary, cfg.Providers.Chat.Name, resilience.FallbackConfig{})
	for _, entry := range cfg.Providers.FallbackChat {
		p, err := reg.CreateChat(entry)
		if err != nil {
			return nil, fmt.Errorf("create fallback chat provider %q: %w", entry.Name, err)
		}
		group.AddFallback(entry.Name, p)
	}
	return group, nil
}

// withEmbedFallbacks mirrors withChatFallbacks for the embeddings provider.
func withEmbedFallbacks(reg *config.Registry, cfg *config.Config, primary embeddings.Provider) (embeddings.Provider, error) {
	if len(cfg.Providers.FallbackEmbeddings) == 0 {
		return primary, nil
	}
	group := resilience.NewEmbedFallback(primary, cfg.Providers.Embeddings.Name, resilience.FallbackConfig{})
	for _, entry := range cfg.Providers.FallbackEmbeddings {
		p, err := reg.CreateEmbeddings(entry)
		if err != nil {
			return nil, fmt.Errorf("create fallback embeddings provider %q: %w", entry.Name, err)
		}
		group.AddFallback(entry.Name, p)
	}
	return group, nil
}

// renderContext wraps the retrieved memory context in <memory> tags and
// appends any reconciler contradictions as advisory notes. Returns "" when
// there is nothing worth injecting.
func renderContext(out *engine.Output) string {
	if out.Context == "" && len(out.Contradictions) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("<memory>\n")
	if out.Context != "" {
		b.WriteString(out.Context)
		b.WriteString("\n")
	}
	for _, c := range out.Contradictions {
		fmt.Fprintf(&b, "\nNote: newly recorded \"%s\" may conflict with existing \"%s\" (id: %s). %s\n",
			c.NewContent, c.OldContent, c.OldID, c.Question)
	}
	b.WriteString("</memory>")
	return b.String()
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
