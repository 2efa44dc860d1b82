package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"event_explorer/internal/config"
	"event_explorer/internal/domain"
	"event_explorer/internal/geocode/nominatim"
	"event_explorer/internal/llm/openai"
	"event_explorer/internal/pipeline"
	"event_explorer/internal/prompt"
	"event_explorer/internal/publisher"
	"event_explorer/internal/source/serper"
	"event_explorer/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	resumeSlug := flag.String("resume", "", "resume a suspended run by event slug")
	confirmList := flag.String("confirm", "", "comma-separated categories to confirm on resume")
	suspend := flag.Bool("suspend", false, "suspend at the retrieval checkpoint instead of asking")
	flag.Parse()

	// Setup logger
	logger := setupLogger("info")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	prompts, err := prompt.Load(cfg.Pipeline.PromptsFile)
	if err != nil {
		logger.Error("failed to load prompt templates", "error", err)
		os.Exit(1)
	}

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Initialize RabbitMQ publisher
	rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Exchange,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
		QueueName:  cfg.RabbitMQ.QueueName,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer rabbitMQ.Close()

	// Initialize stores
	stageResults := postgres.NewStageResultStore(db)
	runStates := postgres.NewRunStateStore(db)
	txManager := postgres.NewTransactionManager(db)

	// Initialize collaborators
	search := serper.New(serper.Config{
		APIKey:         cfg.Search.APIKey,
		BaseURL:        cfg.Search.BaseURL,
		Timeout:        cfg.Search.Timeout,
		MaxAttempts:    cfg.Search.Retry.MaxAttempts,
		InitialBackoff: cfg.Search.Retry.InitialBackoff,
		MaxBackoff:     cfg.Search.Retry.MaxBackoff,
	}, logger)

	reasoner := openai.New(openai.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Timeout:        cfg.LLM.Timeout,
		MaxAttempts:    cfg.LLM.Retry.MaxAttempts,
		InitialBackoff: cfg.LLM.Retry.InitialBackoff,
		MaxBackoff:     cfg.LLM.Retry.MaxBackoff,
	}, logger)

	geocoder := nominatim.New(nominatim.Config{
		BaseURL: cfg.Geocoder.BaseURL,
		Timeout: cfg.Geocoder.Timeout,
	}, logger)

	driver := pipeline.NewDriver(
		pipeline.NewDiscovery(search, reasoner, prompts, cfg.Pipeline.EventCount, logger),
		pipeline.NewAnalysis(reasoner, prompts, logger),
		pipeline.NewRetrieval(search, cfg.Pipeline, logger),
		pipeline.NewNormalizer(logger),
		pipeline.NewIntegration(geocoder, logger),
		stageResults,
		runStates,
		txManager,
		rabbitMQ,
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if *resumeSlug != "" {
		if err := resume(ctx, driver, *resumeSlug, *confirmList, logger); err != nil {
			logger.Error("resume failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, driver, *suspend); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, driver *pipeline.Driver, suspend bool) error {
	events, err := driver.Discover(ctx)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("No trending events found.")
		return nil
	}

	fmt.Println("Trending events:")
	for i, ev := range events {
		fmt.Printf("  %d. %s - %s\n", i+1, ev.Title, ev.Description)
	}

	choice, err := readSelection(ctx, len(events))
	if err != nil {
		return err
	}
	event := events[choice-1]

	var checkpoint pipeline.Checkpoint
	if !suspend {
		checkpoint = stdinCheckpoint{}
	}

	payload, stats, err := driver.Run(ctx, event, checkpoint)
	if errors.Is(err, domain.ErrAwaitingConfirmation) {
		fmt.Printf("Run suspended. Resume with: explorer -resume %s -confirm social,video\n", domain.Slugify(event.Title))
		return nil
	}
	if err != nil {
		return err
	}

	printSummary(payload, stats)
	return nil
}

func resume(ctx context.Context, driver *pipeline.Driver, slug, confirmList string, logger *slog.Logger) error {
	decisions := pipeline.Decisions{}
	for _, raw := range strings.Split(confirmList, ",") {
		cat := domain.Category(strings.TrimSpace(strings.ToLower(raw)))
		if cat == "" {
			continue
		}
		if !cat.Valid() {
			return fmt.Errorf("unknown category %q", raw)
		}
		decisions[cat] = true
	}

	logger.Info("resuming", "slug", slug, "confirmed", len(decisions))

	payload, stats, err := driver.Resume(ctx, slug, decisions)
	if err != nil {
		return err
	}

	printSummary(payload, stats)
	return nil
}

func printSummary(payload *domain.Payload, stats *domain.RunStats) {
	fmt.Printf("\nPayload ready: %s\n", payload.EventName)
	fmt.Printf("  items: %d (geocoded %d)\n", payload.TotalItems, stats.Geocoded)
	fmt.Printf("  categories confirmed: %d, declined: %d\n", stats.Confirmed, stats.Declined)
	fmt.Printf("  published: %d item(s) in %s\n", stats.Published, stats.Duration)
}

func readSelection(ctx context.Context, max int) (int, error) {
	lines := readLines(ctx)
	for {
		fmt.Printf("Select an event [1-%d]: ", max)
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return 0, fmt.Errorf("input closed")
			}
			n, err := strconv.Atoi(strings.TrimSpace(line))
			if err == nil && n >= 1 && n <= max {
				return n, nil
			}
			fmt.Println("Invalid selection.")
		}
	}
}

// stdinCheckpoint asks for confirmation on the terminal. The ctx guard
// keeps the pipeline cancellable while a prompt is waiting for input.
type stdinCheckpoint struct{}

func (stdinCheckpoint) Confirm(ctx context.Context, preview domain.CheckpointPreview) (bool, error) {
	fmt.Println(preview.Render())
	fmt.Print("Fetch full details? [y/N]: ")

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case line, ok := <-readLines(ctx):
		if !ok {
			return false, nil
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	}
}

// stdinScanner is shared across prompts so type-ahead input buffered by one
// read is not lost to the next.
var stdinScanner = bufio.NewScanner(os.Stdin)

func readLines(ctx context.Context) <-chan string {
	ch := make(chan string, 1)
	go func() {
		if stdinScanner.Scan() {
			select {
			case ch <- stdinScanner.Text():
			case <-ctx.Done():
			}
		}
		close(ch)
	}()
	return ch
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}
