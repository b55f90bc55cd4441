package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arkilian/lakeingest/internal/config"
)

// rootState is shared by every subcommand of one invocation.
type rootState struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	state := &rootState{}

	cmd := &cobra.Command{
		Use:   "lakeingest",
		Short: "Ingest CSV files into Iceberg tables through a REST catalog",
		Long: `lakeingest reads a delimited file (local or s3://, optionally compressed),
infers a schema, creates the target table when missing, and appends the rows
in fixed-size chunks with a bounded number of concurrent workers.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return state.init(cmd)
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&state.configPath, "config", "", "config file (YAML or JSON)")
	cmd.PersistentFlags().StringVar(&state.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&state.logFormat, "log-format", "text", "log format: text, json")

	cmd.AddCommand(newIngestCmd(state))
	cmd.AddCommand(newHistoryCmd(state))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// init loads configuration (defaults, file, environment, then flags) and
// installs the logger.
func (s *rootState) init(cmd *cobra.Command) error {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = s.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = s.logFormat
	}

	logger, err := setupLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	s.cfg = cfg
	s.logger = logger
	return nil
}

func setupLogger(level, format string) (*slog.Logger, error) {
	var slogLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level: %q (expected debug, info, warn, error)", level)
	}

	opts := &slog.HandlerOptions{Level: slogLevel}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("unknown log format: %q (expected text, json)", format)
	}

	return slog.New(handler), nil
}
