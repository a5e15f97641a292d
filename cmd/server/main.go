package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/2006-sk/Backend-hackharvard/internal/archive"
	"github.com/2006-sk/Backend-hackharvard/internal/audio"
	"github.com/2006-sk/Backend-hackharvard/internal/config"
	"github.com/2006-sk/Backend-hackharvard/internal/event"
	"github.com/2006-sk/Backend-hackharvard/internal/history"
	"github.com/2006-sk/Backend-hackharvard/internal/metrics"
	"github.com/2006-sk/Backend-hackharvard/internal/monitor"
	"github.com/2006-sk/Backend-hackharvard/internal/risk"
	"github.com/2006-sk/Backend-hackharvard/internal/server"
	"github.com/2006-sk/Backend-hackharvard/internal/session"
	"github.com/2006-sk/Backend-hackharvard/internal/transcription"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "scamshield-backend"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("http_port", cfg.HTTP.Port),
		slog.String("http_address", cfg.HTTP.Address),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Float64("segment_seconds", cfg.Audio.SegmentSeconds),
		slog.Int("session_timeout", cfg.Audio.SessionTimeout),
		slog.String("transcription_endpoint", cfg.Transcription.Endpoint),
		slog.String("risk_endpoint", cfg.Risk.Endpoint),
		slog.String("archive_bucket", cfg.Archive.Bucket),
		slog.Bool("history_enabled", cfg.History.Enabled),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Session store and audio buffer
	store := session.NewStore(cfg.History.RecentCalls)
	chunks := audio.NewChunkBuffer()

	// Event hub for live notifications
	hub := event.NewHub(logger, cfg.Hub.SubscriberQueueSize, appMetrics)
	logger.Info("Event hub initialized",
		slog.Int("subscriber_queue_size", cfg.Hub.SubscriberQueueSize))

	// Transcription client
	transcriber, err := transcription.NewClient(transcription.Config{
		Endpoint:      cfg.Transcription.Endpoint,
		APIKey:        cfg.Transcription.APIKey,
		Timeout:       cfg.Transcription.GetTimeoutDuration(),
		MaxRetries:    cfg.Transcription.MaxRetries,
		MaxConcurrent: cfg.Transcription.MaxConcurrent,
		Language:      cfg.Transcription.Language,
	})
	if err != nil {
		logger.Error("Failed to create transcription client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Risk classifier and evaluator
	classifier, err := risk.NewClient(risk.ClientConfig{
		Endpoint: cfg.Risk.Endpoint,
		APIKey:   cfg.Risk.APIKey,
		Timeout:  cfg.Risk.GetTimeoutDuration(),
	})
	if err != nil {
		logger.Error("Failed to create risk classifier client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	evaluator, err := risk.NewEvaluator(classifier)
	if err != nil {
		logger.Error("Failed to create risk evaluator", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Recording storage
	uploader, err := archive.NewS3Uploader(ctx, archive.S3Config{
		Endpoint:        cfg.Archive.Endpoint,
		Region:          cfg.Archive.Region,
		Bucket:          cfg.Archive.Bucket,
		AccessKeyID:     cfg.Archive.AccessKeyID,
		SecretAccessKey: cfg.Archive.SecretAccessKey,
		PublicBaseURL:   cfg.Archive.PublicBaseURL,
	})
	if err != nil {
		logger.Error("Failed to create recording uploader", slog.String("error", err.Error()))
		os.Exit(1)
	}
	pipeline := archive.NewPipeline(chunks, uploader, hub, logger, archive.PipelineConfig{
		SampleRate: cfg.Audio.SampleRate,
		MaxRetries: cfg.Archive.MaxRetries,
	})
	logger.Info("Finalization pipeline initialized", slog.String("bucket", cfg.Archive.Bucket))

	// Call history
	var recorder history.Recorder = history.Noop{}
	if cfg.History.Enabled {
		repo, err := history.NewRepository(ctx, cfg.History.DSN)
		if err != nil {
			logger.Error("Failed to connect to history database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer repo.Close()
		recorder = repo
		logger.Info("Call history database initialized")
	}

	// Monitoring engine
	engine := monitor.NewEngine(store, chunks, hub, evaluator, transcriber, pipeline, recorder,
		appMetrics, logger, monitor.Config{
			SampleRate:      cfg.Audio.SampleRate,
			SegmentDuration: cfg.Audio.GetSegmentDuration(),
			SessionTimeout:  cfg.Audio.GetSessionTimeoutDuration(),
		})
	engine.Start()
	logger.Info("Monitoring engine initialized",
		slog.Duration("segment_duration", cfg.Audio.GetSegmentDuration()),
		slog.Duration("session_timeout", cfg.Audio.GetSessionTimeoutDuration()),
	)

	// HTTP API and WebSocket server
	httpServer := server.NewHTTPServer(cfg, logger, store, engine, hub, transcriber, recorder, appMetrics)
	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("http_address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
	)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new connections)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	// Drop event subscribers so write loops exit
	hub.Close()

	// Stop the engine (finish in-flight analysis and archival)
	engine.Stop()

	// Flush outstanding transcription requests
	if err := transcriber.Close(); err != nil {
		logger.Error("Error closing transcription client", slog.String("error", err.Error()))
	}

	logger.Info("Final statistics",
		slog.Int("active_calls", store.ActiveCount()),
		slog.Uint64("transcription_requests", transcriber.GetStats().TotalRequests),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
