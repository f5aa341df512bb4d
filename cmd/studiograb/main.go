package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"studiograb/internal/adapters/downloads"
	"studiograb/internal/adapters/localstorage"
	pwdriver "studiograb/internal/adapters/playwright"
	"studiograb/internal/core/domain"
	"studiograb/internal/service"
)

// optionFlags collects repeated -option key=value pairs.
type optionFlags map[string]string

func (o optionFlags) String() string { return "" }

func (o optionFlags) Set(v string) error {
	key, value, ok := strings.Cut(v, "=")
	if !ok {
		return fmt.Errorf("option %q is not key=value", v)
	}
	o[key] = value
	return nil
}

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist, environment variables might be set manually
		fmt.Fprintln(os.Stderr, "No .env file found")
	}

	// Parse flags
	kind := flag.String("kind", "", "Artifact kind to generate: deck | audio | video | infographic")
	batchFile := flag.String("batch", "", "Path to a JSON file with a list of generation requests")
	prompt := flag.String("prompt", "", "Free-text steering prompt for the generation dialog")
	url := flag.String("url", os.Getenv("STUDIOGRAB_URL"), "Studio page URL (defaults to STUDIOGRAB_URL)")
	downloadDir := flag.String("download-dir", envOr("STUDIOGRAB_DOWNLOAD_DIR", "./downloads"), "Directory the browser saves downloads into")
	dataDir := flag.String("data-dir", envOr("STUDIOGRAB_DATA_DIR", "./data"), "Base directory for run manifests and records")
	headless := flag.Bool("headless", envBool("STUDIOGRAB_HEADLESS"), "Run the browser without a visible window")
	readyTimeout := flag.Duration("ready-timeout", 3*time.Minute, "How long to wait for a signed-in session")
	opts := optionFlags{}
	flag.Var(opts, "option", "Dialog option as field=choice (repeatable)")
	flag.Parse()

	if (*kind == "") == (*batchFile == "") {
		fmt.Println("Usage: studiograb -kind <deck|audio|video|infographic> [-option field=choice]... [-prompt <text>]")
		fmt.Println("       studiograb -batch <requests.json>")
		fmt.Println("\nExample:")
		fmt.Println(`  studiograb -kind deck -option "Style=Detailed" -prompt "Focus on chapter 3"`)
		fmt.Println("  studiograb -batch nightly.json -headless")
		os.Exit(1)
	}
	if *url == "" {
		fmt.Fprintln(os.Stderr, "No studio URL: pass -url or set STUDIOGRAB_URL")
		os.Exit(1)
	}

	// Setup logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	requests, err := loadRequests(*kind, opts, *prompt, *batchFile)
	if err != nil {
		logger.Fatal("Invalid request input", zap.Error(err))
	}

	cfg := service.DefaultConfig()
	applyBudgetOverrides(&cfg, logger)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Received interrupt signal, cancelling")
		cancel()
	}()

	// Initialize adapters
	if err := pwdriver.EnsureRuntime(logger); err != nil {
		logger.Fatal("Failed to prepare browser runtime", zap.Error(err))
	}
	driver, err := pwdriver.Launch(pwdriver.Config{
		AppURL:      *url,
		DownloadDir: *downloadDir,
		Headless:    *headless,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to launch browser", zap.Error(err))
	}
	defer driver.Close()

	// os.Exit skips deferred calls, so every exit past this point closes
	// the browser explicitly to avoid leaking a Chromium process.
	if err := driver.WaitReady(ctx, *readyTimeout); err != nil {
		logger.Error("Session gate failed", zap.Error(err))
		driver.Close()
		os.Exit(1)
	}

	watcher := downloads.NewWatcher(*downloadDir, time.Second, cfg.SettleDelay, logger)
	store := localstorage.NewLocalStorage(*dataDir)

	resolver := service.NewResolver(driver, cfg.SettleDelay, logger)
	dialog := service.NewDialogController(driver, resolver, cfg, logger)
	monitor := service.NewMonitor(driver, cfg, logger)
	pipeline := service.NewDownloadPipeline(driver, resolver, watcher, cfg, logger)
	orchestrator := service.NewOrchestrator(dialog, monitor, pipeline, cfg, logger)
	scheduler := service.NewBatchScheduler(orchestrator, monitor, pipeline, driver, store, cfg, logger)

	// Run the batch
	result, err := scheduler.Run(ctx, requests)
	if err != nil {
		logger.Error("Run failed", zap.Error(err))
		driver.Close()
		os.Exit(1)
	}

	// Print summary
	fmt.Println("\n=== Run Summary ===")
	fmt.Printf("Run ID:       %s\n", result.RunID)
	fmt.Printf("Requested:    %d\n", result.Requested)
	fmt.Printf("Triggered:    %d\n", result.Triggered)
	fmt.Printf("Downloaded:   %d\n", len(result.Records))
	for _, rec := range result.Records {
		fmt.Printf("  %-12s %s\n", rec.Kind, rec.Path)
	}
	fmt.Printf("Manifest:     %s\n", store.RunPath(result.RunID))
	fmt.Printf("Completed At: %s\n", result.CompletedAt.Format("2006-01-02 15:04:05 UTC"))
	if result.Triggered < result.Requested || len(result.Records) < result.Triggered {
		driver.Close()
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// applyBudgetOverrides reads per-kind wait overrides of the form
// STUDIOGRAB_DECK_TIMEOUT=6m / STUDIOGRAB_AUDIO_POLL=15s.
func applyBudgetOverrides(cfg *service.Config, logger *zap.Logger) {
	for _, kind := range domain.Kinds() {
		key := "STUDIOGRAB_" + strings.ToUpper(kind.String())
		b := cfg.Budget(kind)
		changed := false
		if d, ok := envDuration(key+"_TIMEOUT", logger); ok {
			b.ReadyTimeout = d
			changed = true
		}
		if d, ok := envDuration(key+"_POLL", logger); ok {
			b.PollInterval = d
			changed = true
		}
		if changed {
			cfg.Budgets[kind] = b
		}
	}
}

func envDuration(key string, logger *zap.Logger) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Warn("ignoring unparsable duration", zap.String("var", key), zap.String("value", v))
		return 0, false
	}
	return d, true
}

// loadRequests turns the CLI input into generation requests: either a
// single request from flags or a list from a batch file.
func loadRequests(kind string, opts optionFlags, prompt, batchFile string) ([]domain.GenerationRequest, error) {
	if batchFile != "" {
		data, err := os.ReadFile(batchFile)
		if err != nil {
			return nil, fmt.Errorf("reading batch file: %w", err)
		}
		var requests []domain.GenerationRequest
		if err := json.Unmarshal(data, &requests); err != nil {
			return nil, fmt.Errorf("parsing batch file: %w", err)
		}
		if len(requests) == 0 {
			return nil, fmt.Errorf("batch file %s has no requests", batchFile)
		}
		return requests, nil
	}

	k := domain.ArtifactKind(kind)
	if !k.Valid() {
		return nil, fmt.Errorf("unknown artifact kind %q", kind)
	}
	options := make([]domain.FormOption, 0, len(opts))
	for field, choice := range opts {
		// Radio covers the segmented-toggle case too; batch files name
		// the control family explicitly for dropdowns and text fields.
		options = append(options, domain.FormOption{Control: domain.ControlRadio, Field: field, Choice: choice})
	}
	return []domain.GenerationRequest{{Kind: k, Options: options, Prompt: prompt}}, nil
}
