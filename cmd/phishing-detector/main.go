package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/phishing-detector/internal/adapters/store"
	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/di"
	"github.com/mikey/phishing-detector/internal/factory"
	"github.com/mikey/phishing-detector/internal/ports"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "phishing-detector",
		Short:         "Classify uploaded email messages as phishing or legitimate",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := di.BuildContainer(configFile)
			if err != nil {
				return fmt.Errorf("failed to build dependency container: %w", err)
			}
			return container.Invoke(run)
		},
	}
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "path to config file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	intakes []ports.Intake,
	client core.CompletionClient,
	cache factory.StoppableCache,
	repo store.Repository,
) error {
	defer logger.Sync()

	started := make([]ports.Intake, 0, len(intakes))
	for _, in := range intakes {
		if err := in.Start(); err != nil {
			logger.Error("Failed to start intake", zap.Error(err))
			stopAll(logger, started)
			return err
		}
		started = append(started, in)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("Shutting down...", zap.String("signal", sig.String()))

	stopAll(logger, started)

	if closer, ok := client.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close completion client", zap.Error(err))
		}
	}
	if cache != nil {
		cache.Stop()
	}
	if err := repo.Close(); err != nil {
		logger.Error("Failed to close history store", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}

func stopAll(logger *zap.Logger, intakes []ports.Intake) {
	for _, in := range intakes {
		if err := in.Stop(); err != nil {
			logger.Error("Failed to stop intake", zap.Error(err))
		}
	}
}
