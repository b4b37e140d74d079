package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sgbridge/internal/config"
	"sgbridge/internal/logger"
	"sgbridge/pkg/logging"
)

var (
	configFile    string
	listenAddress string
	listenPort    int
)

// @title           Shotgun Jira Bridge API
// @version         1.0
// @description     Web bridge between a production tracker and Jira: accepts forwarded tracker events, Jira webhooks and admin resets, and dispatches them to configured syncers

// @host      localhost:9090
// @BasePath  /

// @schemes   http https

func main() {
	rootCmd := &cobra.Command{
		Use:   "bridge-service",
		Short: "Sync bridge for the Shotgun Jira bridge",
		Long:  "Bridge service receives forwarded tracker events and Jira webhooks and dispatches them to the syncer configured for each settings name",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")
	rootCmd.PersistentFlags().StringVar(&listenAddress, "listen-address", "", "Listen address override")
	rootCmd.PersistentFlags().IntVar(&listenPort, "port", 0, "Listen port override")

	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the bridge service",
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLog := logging.NewEarlyLog()

			if configFile == "" {
				configFile = os.Getenv("CONFIG_FILE")
				if configFile == "" {
					earlyLog.Error("Config file is required. Use --config flag or CONFIG_FILE environment variable")
					return fmt.Errorf("config file is required")
				}
			}

			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				earlyLog.Error("Failed to load config: %v", err)
				return err
			}

			// CLI overrides keep parity with the original daemon flags.
			if listenAddress != "" {
				cfg.Server.Host = listenAddress
			}
			if listenPort != 0 {
				cfg.Server.Port = listenPort
			}

			log, err := logger.New(cfg.Logging.Level)
			if err != nil {
				earlyLog.Error("Failed to init logger: %v", err)
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.InfowCtx(ctx, "Starting Bridge Service")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.Fatalf("Failed to initialize application: %v", err)
			}

			if err := app.Run(ctx); err != nil {
				log.ErrorwCtx(ctx, "Application error", "error", err)
				return err
			}
			return nil
		},
	}
}
