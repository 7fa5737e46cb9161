package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/gaia-mentor/internal/config"
	"github.com/danielpatrickdp/gaia-mentor/internal/logging"
)

var version = "dev"

var (
	configPath string
	envFile    string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "gaia",
	Short: "Gaia NJIT mentor: persona routing and handoff service",
	Long: `gaia routes each student message to one of the mentor personas
(gaia, athena, aphrodite, hera), suggests a handoff when another persona has
persistently won the turn, and waits for the student to confirm or decline.

Run "gaia serve" for the HTTP API. The other commands work offline against
the SQLite store or replay fixtures.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnv(envFile); err != nil {
			return err
		}
		cfg, err := config.Read(configPath)
		if err != nil {
			return err
		}
		logger, err = logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "gaia.yaml", "config file (missing file keeps defaults)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before config")
	rootCmd.Version = version

	rootCmd.AddCommand(serveCmd, inspectCmd, replayCmd, fixtureExportCmd, personasCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadEnv loads a dotenv file without overriding variables already set. A
// missing file is not an error.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
