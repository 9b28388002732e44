// Waypoint is a travel assistant that drives an LLM reasoning loop
// over AMap tools reached through the Model Context Protocol.
//
// Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]); secrets can come
// from a .env file in the working directory.
//
// Usage:
//
//	waypoint serve           Start the HTTP/WebSocket API server
//	waypoint chat            Interactive query loop (default)
//	waypoint ask <question>  Ask a single question and exit
//	waypoint version         Print version and build information
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/waypoint-ai/waypoint/internal/agent"
	"github.com/waypoint-ai/waypoint/internal/api"
	"github.com/waypoint-ai/waypoint/internal/buildinfo"
	"github.com/waypoint-ai/waypoint/internal/config"
	"github.com/waypoint-ai/waypoint/internal/gateway"
	"github.com/waypoint-ai/waypoint/internal/history"
	"github.com/waypoint-ai/waypoint/internal/llm"
	"github.com/waypoint-ai/waypoint/internal/mcp"
	"github.com/waypoint-ai/waypoint/internal/memory"
	"github.com/waypoint-ai/waypoint/internal/routeinfo"
	"github.com/waypoint-ai/waypoint/internal/toolcache"
)

// main constructs the OS-level environment and delegates to run, which
// keeps os.Exit and os.Args out of the application logic.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	// Parse arguments by hand; the surface is three flags and a
	// subcommand, not worth a CLI framework and its global state.
	var configPath, logLevel, command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-log-level" && i+1 < len(args):
			logLevel = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-log-level="):
			logLevel = strings.TrimPrefix(args[i], "-log-level=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			printUsage(stdout)
			return nil
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		case command != "":
			cmdArgs = append(cmdArgs, args[i])
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	if command == "" {
		command = "chat"
	}
	if command == "version" {
		fmt.Fprintln(stdout, buildinfo.String())
		return nil
	}

	// Secrets (CLAUDE_API_KEY, AMAP_MAPS_API_KEY) may live in a .env
	// file next to the binary. Missing file is fine.
	_ = godotenv.Load()

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	if logLevel != "" {
		level, err = config.ParseLogLevel(logLevel)
		if err != nil {
			return err
		}
	}
	logger := newLogger(stderr, level)
	slog.SetDefault(logger)

	logger.Info("waypoint starting",
		"version", buildinfo.Version,
		"config", cfgPath,
		"command", command,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	deps, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	switch command {
	case "serve":
		return runServe(ctx, cfg, deps, logger)
	case "chat":
		return runChat(ctx, deps, stdout)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: waypoint ask <question>")
		}
		return runAsk(ctx, deps, stdout, strings.Join(cmdArgs, " "))
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `waypoint - LLM travel assistant over AMap tools

Usage:
  waypoint [flags] <command> [args]

Commands:
  serve           Start the HTTP/WebSocket API server
  chat            Interactive query loop (default)
  ask <question>  Ask a single question and exit
  version         Print version and build information

Flags:
  -config <path>     Config file (default: search standard locations)
  -log-level <level> trace, debug, info, warn, or error
`)
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig locates and parses the YAML configuration. With no config
// file anywhere, built-in defaults apply; an explicit -config path must
// exist.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, "", err
		}
		return config.Default(), "(defaults)", nil
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	return cfg, cfgPath, nil
}

// deps bundles the wired application components.
type deps struct {
	toolClient   *mcp.Client
	orchestrator *agent.Orchestrator
	mem          *memory.Store
	snapshots    *memory.SnapshotStore
}

func (d *deps) close(logger *slog.Logger) {
	if d.snapshots != nil {
		if err := d.snapshots.Close(); err != nil {
			logger.Warn("closing snapshot store failed", "error", err)
		}
	}
	if d.toolClient != nil {
		if err := d.toolClient.Close(); err != nil {
			logger.Warn("closing tool client failed", "error", err)
		}
	}
}

// buildDeps wires the full component graph: tool server transport and
// client, model gateway, caches, memory, and the orchestrator.
func buildDeps(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*deps, error) {
	if cfg.Anthropic.APIKey == "" {
		return nil, fmt.Errorf("no Anthropic API key configured (set CLAUDE_API_KEY or anthropic.api_key)")
	}

	transport, err := buildTransport(cfg, logger)
	if err != nil {
		return nil, err
	}

	toolClient := mcp.NewClient(transport, logger)
	if err := toolClient.Connect(ctx); err != nil {
		transport.Close()
		return nil, fmt.Errorf("connect to tool server: %w", err)
	}

	client := llm.NewAnthropicClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model, logger)

	var gwOpts []gateway.Option
	orc := cfg.Orchestrator
	if orc.MinCallDelaySec > 0 {
		gwOpts = append(gwOpts, gateway.WithMinCallDelay(time.Duration(orc.MinCallDelaySec*float64(time.Second))))
	}
	if orc.MaxRetries > 0 {
		gwOpts = append(gwOpts, gateway.WithMaxRetries(orc.MaxRetries))
	}
	if orc.BackoffFactor > 0 {
		gwOpts = append(gwOpts, gateway.WithBackoffFactor(orc.BackoffFactor))
	}
	gw := gateway.New(client, logger, gwOpts...)

	cache := toolcache.New(toolClient, logger, toolcache.WithTTL(orc.CacheTTL()))

	routes := routeinfo.Default()
	if cfg.RouteTable != "" {
		routes, err = routeinfo.Load(cfg.RouteTable)
		if err != nil {
			return nil, fmt.Errorf("load route table: %w", err)
		}
	}

	mem := memory.NewStore(routes, logger)

	var snapshots *memory.SnapshotStore
	if cfg.Memory.Path != "" {
		snapshots, err = memory.OpenSnapshotStore(cfg.Memory.Path)
		if err != nil {
			return nil, fmt.Errorf("open memory store: %w", err)
		}
		if snap, err := snapshots.Load(); err != nil {
			logger.Warn("loading memory snapshot failed", "error", err)
		} else if snap != nil {
			mem.Restore(*snap)
			logger.Info("memory restored", "query_count", mem.QueryCount())
		}
	}

	budget := orc.CompressBudget
	if budget == 0 {
		budget = history.DefaultBudget
	}
	compressor := history.NewCompressor(budget, history.NewRegexExtractor(), logger)

	orchestrator := agent.New(gw, toolClient, cache, mem, routes, compressor, logger, agent.Config{
		MaxIterations:  orc.MaxIterations,
		IterationDelay: time.Duration(orc.IterationDelaySec * float64(time.Second)),
	})

	return &deps{
		toolClient:   toolClient,
		orchestrator: orchestrator,
		mem:          mem,
		snapshots:    snapshots,
	}, nil
}

func buildTransport(cfg *config.Config, logger *slog.Logger) (mcp.Transport, error) {
	ts := cfg.ToolServer
	switch {
	case ts.Command != "":
		return mcp.NewStdioTransport(mcp.StdioConfig{
			Command: ts.Command,
			Args:    ts.Args,
			Env:     ts.Env,
			Logger:  logger,
		})
	case ts.URL != "":
		return mcp.NewHTTPTransport(mcp.HTTPConfig{
			URL:     ts.URL,
			Headers: ts.Headers,
			Logger:  logger,
		}), nil
	default:
		return nil, fmt.Errorf("no tool server configured (set tool_server.command or tool_server.url)")
	}
}

func runServe(ctx context.Context, cfg *config.Config, deps *deps, logger *slog.Logger) error {
	listen := fmt.Sprintf("%s:%d", cfg.Listen.Address, cfg.Listen.Port)
	server := api.NewServer(listen, deps.orchestrator, deps.mem, deps.snapshots, logger)

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.Start(ctx); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}
	logger.Info("waypoint stopped")
	return nil
}

// runChat is the interactive loop. "memory" prints the store, "reset
// memory" clears it, "quit" exits.
func runChat(ctx context.Context, deps *deps, stdout io.Writer) error {
	fmt.Fprintln(stdout, "Waypoint 旅行助手已启动")
	fmt.Fprintln(stdout, "输入查询，或 'memory' 查看记忆, 'reset memory' 重置记忆, 'quit' 退出")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(stdout, "\n查询: ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "quit" || line == "exit":
			return nil
		case line == "memory":
			printMemory(stdout, deps.mem)
			continue
		case line == "reset memory":
			deps.mem.Reset()
			persistMemory(deps)
			fmt.Fprintln(stdout, "记忆已重置")
			continue
		}

		if err := runAsk(ctx, deps, stdout, line); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(stdout, "错误: %v\n", err)
		}
	}
}

func runAsk(ctx context.Context, deps *deps, stdout io.Writer, query string) error {
	result, err := deps.orchestrator.Run(ctx, query)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, result.Transcript)
	persistMemory(deps)
	return nil
}

func persistMemory(deps *deps) {
	if deps.snapshots == nil {
		return
	}
	if err := deps.snapshots.Save(deps.mem.Snapshot()); err != nil {
		slog.Warn("failed to persist memory snapshot", "error", err)
	}
}

func printMemory(w io.Writer, mem *memory.Store) {
	snap := mem.Snapshot()
	fmt.Fprintf(w, "查询次数: %d\n", snap.QueryCount)
	fmt.Fprintf(w, "上次查询: %s\n", snap.LastQuery)
	if len(snap.Locations) > 0 {
		fmt.Fprintln(w, "已知位置:")
		for name, loc := range snap.Locations {
			fmt.Fprintf(w, "  %s: %s (%s)\n", name, loc.Address, loc.Coordinates)
		}
	}
	if len(snap.RoutePlans) > 0 {
		fmt.Fprintln(w, "已知路线:")
		for key, plan := range snap.RoutePlans {
			fmt.Fprintf(w, "  %s: %s米, %s秒\n", key, plan.Distance, plan.Duration)
		}
	}
	if len(snap.POIs) > 0 {
		fmt.Fprintln(w, "已知地点:")
		for _, p := range snap.POIs {
			fmt.Fprintf(w, "  %s (%s)\n", p.Name, p.Address)
		}
	}
}
