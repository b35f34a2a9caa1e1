// Command oidcsync runs one reconciliation pass between the identity
// registry and the OIDC client store. Direction is picked by subcommand;
// scheduling is left to cron.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"oidcsync/internal/config"
	"oidcsync/internal/observability"
	"oidcsync/internal/registry"
	syncer "oidcsync/internal/sync"
)

func main() {
	logger := observability.NewLogger(observability.ConfigFromEnv())

	var (
		configPath  string
		interactive bool
	)

	root := &cobra.Command{
		Use:           "oidcsync",
		Short:         "Reconcile OIDC client registrations between the registry and the client store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file")
	root.PersistentFlags().BoolVarP(&interactive, "interactive", "i", false, "confirm every create, update and delete on the console")

	root.AddCommand(&cobra.Command{
		Use:   "to-store",
		Short: "Sync registry facilities into the client store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(syncer.DirectionToStore, configPath, interactive, logger)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "to-registry",
		Short: "Sync stored clients into the registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(syncer.DirectionToRegistry, configPath, interactive, logger)
		},
	})

	if err := root.Execute(); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

// run executes one pass. Per-entity errors only show up in the result
// counters; an error return (and nonzero exit) is reserved for gross
// failure such as unusable configuration or an unreachable store.
func run(direction syncer.Direction, configPath string, interactive bool, logger observability.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			Environment:      envOr("SENTRY_ENVIRONMENT", "production"),
			Release:          envOr("APP_VERSION", "dev"),
			AttachStacktrace: true,
		})
		if err != nil {
			logger.Warn("sentry initialization failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	store, err := selectStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("open client store: %w", err)
	}
	defer func() { _ = store.Close() }()

	client := registry.NewClient(cfg.Registry, logger)
	gateway := registry.NewGateway(client, logger)
	confirm := syncer.NewConsoleConfirmer(os.Stdin, os.Stdout)

	orch := syncer.NewOrchestrator(cfg, gateway, store, confirm, interactive, logger)
	res, err := orch.Run(context.Background(), direction)
	if err != nil {
		return err
	}
	fmt.Println(res.String())
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
