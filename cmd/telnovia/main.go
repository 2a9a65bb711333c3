package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/telnovia-org/analytics/analysis"
	"github.com/telnovia-org/analytics/api"
	"github.com/telnovia-org/analytics/config"
	"github.com/telnovia-org/analytics/dataset"
	"github.com/telnovia-org/analytics/engine"
	"github.com/telnovia-org/analytics/store"
	"github.com/telnovia-org/analytics/translator"
)

var rootCmd = &cobra.Command{
	Use:   "telnovia",
	Short: "Telnovia natural-language data analytics service",
	Long: `Telnovia answers natural-language questions about uploaded tabular
datasets: descriptive questions run through a restricted query engine,
causal questions through backdoor-adjusted effect estimation.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the analytics HTTP API",
	RunE:  runServe,
}

var queryCmd = &cobra.Command{
	Use:   "query <dataset-file> <expression>",
	Short: "Run a single pipeline expression against a local dataset file",
	Long: `Evaluate one restricted pipeline expression (e.g.
"df.group_by('product').agg(pl.sum('sales'))") directly against a CSV or
JSON file, without the model or the HTTP layer.`,
	Args: cobra.ExactArgs(2),
	RunE: runQuery,
}

func main() {
	rootCmd.AddCommand(serveCmd, queryCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg.LogLevel)

	notebooks, turns, closeStore, err := openStores(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	llm := translator.NewAnthropicClient(anthropic.Model(cfg.AnthropicModel), log)
	router := analysis.NewRouter(notebooks, turns, llm, cfg.QueryTimeout, log)
	srv := api.New(notebooks, turns, router, cfg.UploadDir, log)

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(cfg.AllowedOrigins),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		log.Info("API server starting", "addr", cfg.Addr, "model", cfg.AnthropicModel)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	table, err := dataset.LoadFile(args[0])
	if err != nil {
		return fmt.Errorf("loading %s: %w", args[0], err)
	}
	fmt.Println(engine.Execute(args[1], table))
	return nil
}

// openStores returns postgres-backed stores when DATABASE_URL is set and the
// in-memory pair otherwise.
func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.Notebooks, store.Conversations, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL unset, using in-memory store")
		mem := store.NewMemory()
		return mem, mem, func() {}, nil
	}

	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	log.Info("connected to postgres")
	return pg, pg, pg.Close, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(log)
	return log
}
