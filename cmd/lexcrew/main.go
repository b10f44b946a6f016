// LexCrew service entry point.
//
// Usage:
//
//	lexcrew serve                        # start the HTTP service
//	lexcrew serve --config config.yaml   # with a config file
//	lexcrew research --query "..."       # one-shot research run
//	lexcrew health                       # probe a running server
//	lexcrew version                      # show version info
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lexlabs/lexcrew/config"
	"github.com/lexlabs/lexcrew/docstore"
	"github.com/lexlabs/lexcrew/internal/telemetry"
	"github.com/lexlabs/lexcrew/kanoon"
	"github.com/lexlabs/lexcrew/llm/providers/groq"
	"github.com/lexlabs/lexcrew/llm/tools"
	"github.com/lexlabs/lexcrew/research"
)

// Build-time injected version info.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "research":
		runResearch(os.Args[2:])
	case "health":
		runHealthCheck(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("starting LexCrew",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit))

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	srv := NewServer(cfg, logger, otelProviders)
	if err := srv.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	srv.WaitForShutdown()
	logger.Info("LexCrew stopped")
}

// runResearch executes one research crew run from the command line and
// prints the final analysis.
func runResearch(args []string) {
	fs := flag.NewFlagSet("research", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	query := fs.String("query", "", "Legal query to research")
	timeout := fs.Duration("timeout", 10*time.Minute, "Overall run timeout")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	kanoonClient := kanoon.NewClient(kanoon.Config{
		APIKey:     cfg.Kanoon.APIKey,
		BaseURL:    cfg.Kanoon.BaseURL,
		Timeout:    cfg.Kanoon.Timeout,
		MaxRetries: cfg.Kanoon.MaxRetries,
		RatePerSec: cfg.Kanoon.RatePerSec,
	}, logger)

	provider := groq.New(groq.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: float32(cfg.LLM.Temperature),
		Timeout:     cfg.LLM.Timeout,
	}, logger)

	registry := tools.NewRegistry(logger)
	researchTools := research.NewTools(kanoonClient, docstore.NewMemoryStore(), provider, research.ToolsConfig{
		Model:         cfg.LLM.Model,
		Temperature:   float32(cfg.LLM.Temperature),
		DocTokenLimit: cfg.Research.DocTokenLimit,
		SearchPages:   cfg.Research.SearchPages,
		RatePerSec:    cfg.Kanoon.RatePerSec,
	}, logger)
	if err := researchTools.RegisterAll(registry); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to register tools: %v\n", err)
		os.Exit(1)
	}

	pipeline := research.NewPipeline(provider, registry, research.PipelineConfig{
		Model:         cfg.LLM.Model,
		Temperature:   float32(cfg.LLM.Temperature),
		MaxTokens:     cfg.LLM.MaxTokens,
		MaxIterations: cfg.Research.MaxIterations,
	}, logger)

	db, err := research.OpenDatabase(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}

	service := research.NewService(pipeline, research.NewStore(db), nil, nil, research.ServiceConfig{
		CacheTTL: cfg.Research.CacheTTL,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	answer, err := service.Run(ctx, *query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Research failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(answer.Output)
	fmt.Fprintf(os.Stderr, "\nrun_id=%s tokens=%d duration=%s\n",
		answer.RunID, answer.TokensUsed, answer.Duration.Round(time.Millisecond))
}

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}
	fmt.Println("OK")
}

func loadConfig(configPath string) *config.Config {
	loader := config.NewLoader()
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func printVersion() {
	fmt.Printf("LexCrew %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`LexCrew - Legal research crew over Indian Kanoon

Usage:
  lexcrew <command> [options]

Commands:
  serve     Start the LexCrew server
  research  Run one research query from the command line
  health    Check server health
  version   Show version information
  help      Show this help message

Options for 'serve':
  --config <path>   Path to configuration file (YAML)

Options for 'research':
  --query <text>    Legal query to research
  --config <path>   Path to configuration file (YAML)
  --timeout <dur>   Overall run timeout (default 10m)

Examples:
  lexcrew serve
  lexcrew serve --config /etc/lexcrew/config.yaml
  lexcrew research --query "anticipatory bail under section 438"
  lexcrew health --addr http://localhost:8080`)
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		outputPaths = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      encoding == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	opts := []zap.Option{}
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	logger, err := zapConfig.Build(opts...)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
