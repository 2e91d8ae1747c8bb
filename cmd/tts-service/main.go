// main package for the narrator service
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/narrator/internal/config"
	"github.com/book-expert/narrator/internal/metrics"
	"github.com/book-expert/narrator/internal/objectstore"
	"github.com/book-expert/narrator/internal/tts"
	"github.com/book-expert/narrator/internal/worker"
	"github.com/nats-io/nats.go"
	"github.com/spf13/afero"
)

const (
	bootstrapLogFile  = "narrator-bootstrap.log"
	serviceLogFile    = "narrator-service.log"
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
	metricsPath       = "/metrics"
)

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func loadConfig() (*config.Config, error) {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir(), bootstrapLogFile)
	if err != nil {
		// If bootstrap logger fails, we can only print to stderr
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return nil, err
	}

	defer func() { _ = bootstrapLog.Close() }()

	bootstrapLog.Info("Bootstrap logger created.")

	// 2. Load configuration using the central configurator
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		bootstrapLog.Error("Invalid configuration: %v", err)

		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	return cfg, nil
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// 3. Initialize the final logger based on the loaded configuration
	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, serviceLogFile)
	if err != nil {
		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = serve(ctx, cfg, finalLog)
	if err != nil {
		finalLog.Error("Service stopped: %v", err)

		return err
	}

	finalLog.System("Narrator service stopped.")

	return nil
}

// serve wires NATS, storage, synthesis and metrics, then blocks until ctx ends.
func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	natsURL := cfg.NATS.URL
	if natsURL == "" {
		natsURL = nats.DefaultURL
	}

	natsConnection, err := nats.Connect(natsURL, nats.Name("narrator"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", natsURL, err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	texts, err := objectstore.New(jetstreamContext, cfg.NATS.TextObjectStoreBucket)
	if err != nil {
		return fmt.Errorf("text object store: %w", err)
	}

	audioStore, err := objectstore.New(jetstreamContext, cfg.NATS.AudioObjectStoreBucket)
	if err != nil {
		return fmt.Errorf("audio object store: %w", err)
	}

	preprocessor, err := tts.LoadPreprocessor(afero.NewOsFs(), cfg.Text)
	if err != nil {
		return err
	}

	synthesizer, err := tts.NewSynthesizer(cfg.TTS, log)
	if err != nil {
		return err
	}

	recorder := metrics.New()
	engine := tts.NewEngine(synthesizer, audioStore, tts.EngineConfigFrom(cfg.TTS), log, recorder)

	natsWorker, err := worker.NewNatsWorker(natsConnection, texts, preprocessor, engine, worker.Options{
		Subject:       cfg.NATS.TextProcessedSubject,
		AudioSubject:  cfg.NATS.AudioChunkCreatedSubject,
		MaxChunkChars: cfg.Text.MaxChunkChars,
	}, log, recorder)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	metricsServer := startMetrics(cfg.Metrics.ListenAddress, recorder, log)

	log.System("Narrator service initialized (%s backend). Listening for jobs on subject: %s",
		cfg.TTS.Backend, cfg.NATS.TextProcessedSubject)

	runErr := natsWorker.Run(ctx)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		shutdownErr := metricsServer.Shutdown(shutdownCtx)
		if shutdownErr != nil {
			log.Warn("Metrics server shutdown: %v", shutdownErr)
		}
	}

	if runErr != nil {
		return fmt.Errorf("worker: %w", runErr)
	}

	return nil
}

// startMetrics serves the recorder on address. An empty address disables it.
func startMetrics(address string, recorder *metrics.Recorder, log *logger.Logger) *http.Server {
	if address == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(metricsPath, recorder.Handler())

	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server failed: %v", err)
		}
	}()

	log.Info("Serving metrics on %s%s", address, metricsPath)

	return server
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
