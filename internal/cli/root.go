// Package cli provides the command-line interface for the barangay helpdesk.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"barangay-helpdesk/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose  bool
	inMemory bool

	cfg         *config.Config
	logger      *slog.Logger
	closeLogger func() error
	deps        *app
)

var rootCmd = &cobra.Command{
	Use:   "barangay",
	Short: "Barangay helpdesk chatbot and live-chat console",
	Long: `barangay answers visitor questions from the helpdesk dataset and hands
conversations over to barangay staff when a visitor asks for a person.

Conversations are stored in DynamoDB (STATE_TABLE). Use --memory to run
everything in-process for local demos.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		level := cfg.Level()
		if verbose {
			level = slog.LevelDebug
		}
		logger, closeLogger = config.SetupLogger(cfg.LogFile, level)

		deps, err = buildApp(cmd.Context(), cfg, logger, inMemory)
		if err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLogger != nil {
			if err := closeLogger(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&inMemory, "memory", false, "keep conversations in memory instead of DynamoDB")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(intentsCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(staffCmd)
}
