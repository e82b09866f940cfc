package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chitchi46/lectureqa/internal/app"
	"github.com/chitchi46/lectureqa/internal/config"
	"github.com/chitchi46/lectureqa/internal/logger"
	"github.com/chitchi46/lectureqa/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "lectureqa",
	Short: "Question generator for lecture materials",
	Long: "lectureqa ingests lecture documents, indexes them and generates " +
		"practice questions grounded in the lecture text.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		logger.SetVerbose(verbose)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides LECTUREQA_DB env var)")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML or TOML config file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(answerCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(practiceCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then LECTUREQA_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}

// loadConfig loads and validates the configuration named by --config.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, used, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", used, err)
	}
	return cfg, nil
}

// openService builds the application service for one command run. The
// caller closes it.
func openService(cmd *cobra.Command) (*app.Service, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	svc, err := app.Open(cmd.Context(), cfg, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open service: %w", err)
	}
	return svc, nil
}
