package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coursechat/coursechat/api"
	"github.com/coursechat/coursechat/internal/app"
	"github.com/coursechat/coursechat/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API server. On startup the configured course
document folder is indexed; documents already in the store are skipped.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()
	logger.Info("starting coursechat server", "version", Version)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	// Index the docs folder on startup. A missing folder is not fatal:
	// the server can still answer general questions.
	if _, err := os.Stat(cfg.DocsDir); err != nil {
		logger.Warn("course documents folder not found, skipping startup indexing",
			"dir", cfg.DocsDir)
	} else {
		courses, chunks, err := a.System.AddCourseFolder(ctx, cfg.DocsDir, false)
		if err != nil {
			return fmt.Errorf("indexing course folder: %w", err)
		}
		logger.Info("startup indexing complete", "courses_added", courses, "chunks_added", chunks)
	}

	srv := api.NewServer(a.System, a.DBPool, api.Config{
		Addr:        cfg.Addr,
		CORSOrigins: cfg.CORSOrigins,
	}, logger)

	return srv.Run(ctx)
}
