// Command storectl runs one-off operator tasks against the store's database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"recharge-store/config"
	"recharge-store/internal/app"
	"recharge-store/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "storectl",
	Short:         "Operator tasks for the recharge store",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log.level")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "storectl: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads configuration and builds the logger for a command.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, logger.New(cfg.Log.Level, cfg.Log.Pretty), nil
}

// withApp wires the full service graph for the duration of fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}
