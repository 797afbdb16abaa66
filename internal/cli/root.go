package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"scirag/config"
	"scirag/internal/logger"
)

var (
	cfgFile   string
	cfg       *config.Config
	rootDir   string
	storePath string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "scirag",
	Short: "Retrieval over scientific article XML",
	Long: `scirag ingests JATS article XML into a local vector store and answers
free-text questions with ranked, deduplicated passages.

Example usage:
  scirag build ./xml --recursive          # Build the store from a directory
  scirag query -q "CRISPR gene editing"   # Search for relevant passages
  scirag ask -q "How do phages evade CRISPR?"
  scirag interactive                      # Question loop over the store`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if err := config.LoadEnv(rootDir); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger.Init(cfg.Logging.Level, cfg.Logging.Format)
		if verbose {
			logger.SetVerbose(true)
		}
		return nil
	},
}

// Execute runs the root command; interrupts cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./scirag.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "store directory (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
