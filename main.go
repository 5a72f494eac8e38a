package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"serp-go/internal/bootstrap"
	"serp-go/internal/config"
	"serp-go/pkg/keyword"
	"serp-go/pkg/logger"
	"serp-go/pkg/pipeline"
	"serp-go/pkg/serp"
	"serp-go/pkg/storage"
	"serp-go/pkg/worker"
)

// getEnvOrDefault returns environment variable value or default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault returns environment variable as int or default
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBoolOrDefault returns environment variable as bool or default
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	defaults := worker.DefaultSchedulerConfig()

	var (
		target      = flag.String("target", getEnvOrDefault("SERP_TARGET", ""), "Target domain to analyze (env: SERP_TARGET)")
		keywords    = flag.String("keywords", getEnvOrDefault("SERP_KEYWORDS", ""), "Comma-separated keywords (env: SERP_KEYWORDS)")
		competitors = flag.String("competitors", getEnvOrDefault("SERP_COMPETITORS", ""), "Comma-separated known competitor domains (env: SERP_COMPETITORS)")
		apiURL      = flag.String("api-url", getEnvOrDefault("SERP_API_URL", ""), "Search API endpoint (env: SERP_API_URL)")
		apiKey      = flag.String("api-key", getEnvOrDefault("SERP_API_KEY", ""), "Search API key (env: SERP_API_KEY)")
		volumeURL   = flag.String("volume-url", getEnvOrDefault("SERP_VOLUME_URL", ""), "Optional keyword volume API endpoint (env: SERP_VOLUME_URL)")
		volumeKey   = flag.String("volume-key", getEnvOrDefault("SERP_VOLUME_KEY", ""), "Keyword volume API key (env: SERP_VOLUME_KEY)")
		batchSize   = flag.Int("batch-size", getEnvIntOrDefault("SERP_BATCH_SIZE", defaults.BatchSize), "Keywords resolved concurrently per batch (env: SERP_BATCH_SIZE)")
		timeout     = flag.Duration("timeout", 10*time.Minute, "Overall run timeout")
		debug       = flag.Bool("debug", getEnvBoolOrDefault("DEBUG", false), "Enable debug logging (env: DEBUG)")
		help        = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *help {
		printUsage()
		return
	}

	if *target == "" || *keywords == "" {
		fmt.Println("ERROR: -target and -keywords are required.")
		fmt.Println("")
		printUsage()
		os.Exit(1)
	}
	if *apiURL == "" {
		fmt.Println("ERROR: Search API endpoint is required.")
		fmt.Println("Use -api-url flag or SERP_API_URL environment variable.")
		os.Exit(1)
	}

	level := "info"
	if *debug {
		level = "debug"
	}
	logger.SetLogger(logger.New(logger.Config{Level: level, Format: "console", Output: "stderr"}))
	lg := logger.GetLogger().WithField("component", "main")

	scheduler := defaults
	scheduler.BatchSize = *batchSize
	cfg := &config.Config{
		SERP:   serp.ClientConfig{Endpoint: *apiURL, APIKey: *apiKey, Timeout: 30 * time.Second},
		Volume: serp.VolumeConfig{Endpoint: *volumeURL, APIKey: *volumeKey},
		Pipeline: config.PipelineConfig{
			ResultsPerQuery: serp.DefaultResultsPerQuery,
			Keywords:        keyword.DefaultConfig(),
			Scheduler:       scheduler,
		},
		Worker:  worker.PoolConfig{MaxWorkers: 1, QueueSize: 1},
		Storage: storage.StorageConfig{Driver: "memory"},
		Cache:   config.CacheConfig{Driver: "none"},
	}

	app, err := bootstrap.New(context.Background(), cfg)
	if err != nil {
		lg.WithError(err).Fatal("Failed to set up pipeline")
	}
	defer app.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	id, runErr := app.Service.Analyze(ctx, pipeline.SubmitRequest{
		TargetDomain:          *target,
		Keywords:              splitList(*keywords),
		AdditionalCompetitors: splitList(*competitors),
	})
	if id == "" {
		lg.WithError(runErr).Fatal("Analysis rejected")
	}

	if err := printSummary(context.Background(), app.Service, id, time.Since(start)); err != nil {
		lg.WithError(err).Fatal("Failed to load results")
	}
	if runErr != nil {
		fmt.Printf("\nAnalysis failed: %v\n", runErr)
		os.Exit(1)
	}
}

func printSummary(ctx context.Context, svc *pipeline.Service, id string, duration time.Duration) error {
	status, err := svc.Status(ctx, id)
	if err != nil {
		return err
	}
	results, err := svc.Results(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("\n=== SERP Analysis: %s ===\n", status.TargetDomain)
	fmt.Printf("Status: %s\n", status.Status)
	if status.OverallScore != nil {
		fmt.Printf("Competitiveness Score: %d/100\n", *status.OverallScore)
	}
	fmt.Printf("Keywords Resolved: %d\n", len(results.Keywords))
	fmt.Printf("Keywords Dropped: %d\n", len(results.Unresolved))
	fmt.Printf("Duration: %s\n", duration.Round(time.Millisecond))

	fmt.Printf("\n=== Keywords ===\n")
	for _, kw := range results.Keywords {
		position := "not ranked"
		if kw.TargetPosition != nil {
			position = "#" + strconv.Itoa(*kw.TargetPosition)
		}
		fmt.Printf("%-40s %-12s competition: %s\n", kw.Keyword, position, kw.CompetitionLevel)
	}
	for _, kw := range results.Unresolved {
		fmt.Printf("%-40s dropped after %d attempts: %s\n", kw.Keyword, kw.Attempts, kw.LastError)
	}

	if len(results.Competitors) > 0 {
		fmt.Printf("\n=== Competitors ===\n")
		for _, c := range results.Competitors {
			fmt.Printf("%-32s keywords: %-3d avg position: %-5.1f share: %5.1f%%  relevance: %.1f\n",
				c.Domain, c.TotalKeywordsFound, c.AveragePosition, c.ShareOfVoice*100, c.RelevanceScore)
		}
	}

	if len(results.Opportunities) > 0 {
		fmt.Printf("\n=== Opportunities ===\n")
		for _, o := range results.Opportunities {
			fmt.Printf("[%3d] %s\n", o.PriorityScore, o.RecommendedAction)
		}
	}

	if status.Progress.LastError != "" {
		fmt.Printf("\nLast error: %s\n", status.Progress.LastError)
	}
	return nil
}

func printUsage() {
	fmt.Println("serp-go: competitive SERP analysis")
	fmt.Println("")
	fmt.Println("USAGE:")
	fmt.Println("    serp-go -target <domain> -keywords <k1,k2,...> [OPTIONS]")
	fmt.Println("")
	fmt.Println("OPTIONS:")
	fmt.Println("    -target string         Target domain (env: SERP_TARGET)")
	fmt.Println("    -keywords string       Comma-separated keywords (env: SERP_KEYWORDS)")
	fmt.Println("    -competitors string    Comma-separated known competitors (env: SERP_COMPETITORS)")
	fmt.Println("    -api-url string        Search API endpoint (env: SERP_API_URL)")
	fmt.Println("    -api-key string        Search API key (env: SERP_API_KEY)")
	fmt.Println("    -volume-url string     Keyword volume API endpoint (env: SERP_VOLUME_URL)")
	fmt.Println("    -volume-key string     Keyword volume API key (env: SERP_VOLUME_KEY)")
	fmt.Println("    -batch-size int        Keywords per batch (default: 5, env: SERP_BATCH_SIZE)")
	fmt.Println("    -timeout duration      Overall run timeout (default: 10m)")
	fmt.Println("    -debug                 Enable debug logging (env: DEBUG)")
	fmt.Println("    -help                  Show this help message")
	fmt.Println("")
	fmt.Println("The HTTP service lives in cmd/server and reads config/dev.yaml.")
}
