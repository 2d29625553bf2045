package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mikey/llm-chat-client/internal/adapters/cache"
	"github.com/mikey/llm-chat-client/internal/analyzer"
	"github.com/mikey/llm-chat-client/internal/config"
	"github.com/mikey/llm-chat-client/internal/core"
	"github.com/mikey/llm-chat-client/internal/di"
	"github.com/mikey/llm-chat-client/internal/inbox"
)

func main() {
	flags := di.ParseAnalyzerFlags()

	// Build the dependency injection container
	container, err := di.BuildAnalyzerContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the batch
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the batch entry point that gets all dependencies injected
func run(
	logger *zap.Logger,
	cfg *config.Config,
	source inbox.Source,
	service *analyzer.Service,
	client core.ConversationClient,
	cacheRepo cache.Repository,
) error {
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel the batch on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Received signal, cancelling batch", zap.String("signal", sig.String()))
		cancel()
	}()

	// Close any resources that need closing
	defer func() {
		if closer, ok := client.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				logger.Error("Failed to close conversation client", zap.Error(err))
			}
		}
		if err := cacheRepo.Close(); err != nil {
			logger.Error("Failed to close cache repository", zap.Error(err))
		}
	}()

	emails, err := source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch emails: %w", err)
	}
	if len(emails) == 0 {
		logger.Info("No emails to analyze")
		return nil
	}
	logger.Info("Starting batch analysis",
		zap.Int("emails", len(emails)),
		zap.String("backend", cfg.GetLLM().Backend),
		zap.Float64("threshold", service.Threshold()))

	results, batchErr := service.AnalyzeBatch(ctx, emails)
	if batchErr != nil {
		logger.Error("Batch analysis stopped early", zap.Error(batchErr))
	}

	if len(results) > 0 {
		printReport(results, service.Threshold())

		outputFile := cfg.GetAnalyzer().OutputFile
		if outputFile != "" {
			if err := analyzer.ExportCSV(outputFile, results); err != nil {
				return err
			}
			logger.Info("Wrote results", zap.String("file", outputFile), zap.Int("count", len(results)))
		} else {
			fmt.Printf("\n")
			if err := analyzer.WriteCSV(os.Stdout, results); err != nil {
				return err
			}
		}
	}

	return batchErr
}

func printReport(results []analyzer.Result, threshold float64) {
	report := analyzer.BuildReport(results, threshold)
	buckets := analyzer.BucketCounts(results)

	fmt.Printf("\n=== Spam Analysis Report ===\n")
	fmt.Printf("Emails analyzed: %d\n", report.TotalEmails)
	fmt.Printf("Spam (score >= %.1f): %d\n", report.Threshold, report.SpamCount)
	fmt.Printf("Safe: %d\n", report.SafeCount)
	fmt.Printf("Average score: %.2f\n", report.AverageScore)
	fmt.Printf("Risk buckets: high=%d medium=%d low=%d\n", buckets.High, buckets.Medium, buckets.Low)
}
