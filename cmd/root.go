// Package cmd defines the coursechat command-line interface.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/coursechat/coursechat/internal/log"
)

var (
	verbose bool
	logJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "coursechat",
	Short: "Retrieval-augmented chat over course materials",
	Long: `coursechat indexes structured course documents into a vector store
and answers questions about them through a tool-calling AI model.

Run "coursechat serve" to start the HTTP API, "coursechat index" to
ingest a folder of course documents, or "coursechat ask" for a one-off
question from the terminal.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log in JSON format")
}

// newLogger builds the process logger from the global flags.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level, JSON: logJSON})
}
