// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/tramite/internal/api"
	"github.com/starford/tramite/internal/extract"
	"github.com/starford/tramite/internal/index"
	"github.com/starford/tramite/internal/mcpserver"
	"github.com/starford/tramite/internal/metrics"
	"github.com/starford/tramite/internal/pipeline"
	"github.com/starford/tramite/internal/recordservice"
	"github.com/starford/tramite/internal/sse"
	"github.com/starford/tramite/internal/storage"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{mode: ModeServe}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// MCP owns stdout, so logs go to stderr in that mode.
	var logOut io.Writer = os.Stdout
	if app.mode == ModeMCP {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("mode", string(app.mode)),
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("input_dir", cfg.Input.Dir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Int("senate_sources", len(cfg.Senate.ExportURLs)+len(cfg.Senate.ExportFiles)+len(cfg.Senate.ScrapeURLs)),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Input.Dir, 0o755); err != nil {
		return fmt.Errorf("create input dir: %w", err)
	}
	docs, err := storage.NewFS(cfg.Input.Dir)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	batchOpts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(m),
		pipeline.WithSources(cfg.Senate.Sources()...),
		pipeline.WithSnapshotStore(db),
		pipeline.WithHistory(db),
		pipeline.WithPublisher(broker),
	}
	pcfg := cfg.PipelineConfig()
	if cfg.Output.Path != "" {
		outDir := filepath.Dir(cfg.Output.Path)
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		out, err := storage.NewFS(outDir)
		if err != nil {
			return fmt.Errorf("init output: %w", err)
		}
		pcfg.OutputPath = filepath.Base(cfg.Output.Path)
		batchOpts = append(batchOpts, pipeline.WithOutput(out))
	}
	batch := pipeline.New(docs, pcfg, batchOpts...)

	svc := recordservice.NewService(db,
		recordservice.WithRunner(batch),
		recordservice.WithDocuments(docs, extract.New(pcfg.Extract, logger)),
	)

	switch app.mode {
	case ModeRun:
		rep, err := batch.Run(ctx)
		if err != nil {
			return err
		}
		if rep.Errors > 0 {
			logger.Warn("Batch finished with degraded steps", slog.Int("errors", rep.Errors))
		}
		return nil
	case ModeMCP:
		logger.Info("MCP server starting on stdio")
		return mcpserver.New(svc).ServeStdio()
	case ModeServe:
		return serve(ctx, cfg, logger, reg, db, batch, svc, broker)
	default:
		return fmt.Errorf("unknown mode %q", app.mode)
	}
}

func serve(ctx context.Context, cfg *Config, logger *slog.Logger, reg *prometheus.Registry,
	db *index.DB, batch *pipeline.Batch, svc *recordservice.Service, broker *sse.Broker,
) error {
	if _, _, err := batch.RunIfChanged(ctx, db); err != nil {
		logger.Warn("initial batch failed", slog.String("error", err.Error()))
	}

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Rerun the batch when export documents change on disk.
	g.Go(func() error {
		err := pipeline.Watch(gCtx, cfg.Input.Dir, cfg.Input.WatchDebounce, logger, func(ctx context.Context) {
			if _, _, err := batch.RunIfChanged(ctx, db); err != nil {
				logger.Error("watcher: batch failed", slog.String("error", err.Error()))
			}
		})
		if err != nil {
			logger.Error("watcher: stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Shut down when ctx is cancelled or a component fails.
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
