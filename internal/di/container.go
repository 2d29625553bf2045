package di

import (
	"flag"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-chat-client/internal/adapters/cache"
	"github.com/mikey/llm-chat-client/internal/analyzer"
	"github.com/mikey/llm-chat-client/internal/config"
	"github.com/mikey/llm-chat-client/internal/core"
	"github.com/mikey/llm-chat-client/internal/factory"
	"github.com/mikey/llm-chat-client/internal/inbox"
	"github.com/mikey/llm-chat-client/internal/logging"
	"github.com/mikey/llm-chat-client/internal/utils"
	"github.com/mikey/llm-chat-client/internal/whitelist"
)

// AnalyzerFlags contains the command line flags for the spam-analyzer
// binary. Zero values leave the corresponding config keys untouched.
type AnalyzerFlags struct {
	InputDir   string
	OutputFile string
	Backend    string
	Threshold  float64
	Verbose    bool
	JSONLog    bool
}

// ParseAnalyzerFlags parses the spam-analyzer command line.
func ParseAnalyzerFlags() *AnalyzerFlags {
	flags := &AnalyzerFlags{}

	flag.StringVar(&flags.InputDir, "input", "", "Directory of .eml files to analyze")
	flag.StringVar(&flags.OutputFile, "output", "", "CSV file to write results to")
	flag.StringVar(&flags.Backend, "backend", "", "Conversation backend (cerebras, test, mock, bedrock, gemini)")
	flag.Float64Var(&flags.Threshold, "threshold", 0, "Spam probability threshold, 0-100 (0 uses the configured value)")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")

	flag.Parse()
	return flags
}

// applyFlagOverrides writes explicitly set flags over the loaded
// configuration.
func applyFlagOverrides(cfg *config.Config, flags *AnalyzerFlags) {
	v := cfg.GetViper()
	if flags.InputDir != "" {
		v.Set("analyzer.input_dir", flags.InputDir)
	}
	if flags.OutputFile != "" {
		v.Set("analyzer.output_file", flags.OutputFile)
	}
	if flags.Backend != "" {
		v.Set("llm.backend", flags.Backend)
	}
	if flags.Threshold > 0 {
		v.Set("spam.threshold", flags.Threshold)
	}
}

// BuildAnalyzerContainer creates and configures a dependency injection
// container for the spam-analyzer binary.
func BuildAnalyzerContainer(flags *AnalyzerFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *AnalyzerFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *AnalyzerFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration with flag overrides applied
	if err := container.Provide(func(flags *AnalyzerFlags) (*config.Config, error) {
		cfg, err := config.New()
		if err != nil {
			return nil, err
		}
		applyFlagOverrides(cfg, flags)
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	// Register backend registry
	if err := container.Provide(factory.NewDefaultRegistry); err != nil {
		return nil, err
	}

	// Register conversation client
	if err := container.Provide(func(r *factory.Registry, cfg *config.Config, logger *zap.Logger) (core.ConversationClient, error) {
		return r.CreateClient(cfg.GetLLM().Backend, factory.Options{Config: cfg, Logger: logger})
	}); err != nil {
		return nil, err
	}

	// Register cache factory and repository
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.CacheFactory) (cache.Repository, error) {
		return f.CreateCacheRepository()
	}); err != nil {
		return nil, err
	}

	// Register cache TTL and enabled flag
	if err := container.Provide(func(f *factory.CacheFactory) (time.Duration, error) {
		return f.GetCacheTTL()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.CacheFactory) bool {
		return f.IsCacheEnabled()
	}); err != nil {
		return nil, err
	}

	// Register whitelist checker
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *whitelist.Checker {
		senders := cfg.GetSpam().WhitelistedSenders
		if len(senders) > 0 {
			logger.Info("Loaded whitelisted senders", zap.Strings("senders", senders))
		}
		return whitelist.NewChecker(senders, logger)
	}); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register inbox source
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) inbox.Source {
		return inbox.NewDirSource(cfg.GetAnalyzer().InputDir, logger)
	}); err != nil {
		return nil, err
	}

	// Register spam threshold and body size limit
	if err := container.Provide(func(cfg *config.Config) float64 {
		return cfg.GetSpam().Threshold
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config) int {
		return cfg.GetSpam().MaxBodySize
	}); err != nil {
		return nil, err
	}

	// Register analyzer service
	if err := container.Provide(analyzer.NewService); err != nil {
		return nil, err
	}

	return container, nil
}
