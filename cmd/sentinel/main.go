package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/sentinel/pkg/api"
	"github.com/cuemby/sentinel/pkg/client"
	"github.com/cuemby/sentinel/pkg/config"
	"github.com/cuemby/sentinel/pkg/events"
	"github.com/cuemby/sentinel/pkg/log"
	"github.com/cuemby/sentinel/pkg/metrics"
	"github.com/cuemby/sentinel/pkg/queue"
	"github.com/cuemby/sentinel/pkg/remediation"
	"github.com/cuemby/sentinel/pkg/scanner"
	"github.com/cuemby/sentinel/pkg/staleness"
	"github.com/cuemby/sentinel/pkg/storage"
	"github.com/cuemby/sentinel/pkg/types"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Sentinel - automated remediation of stale appliances",
	Long: `Sentinel watches the appliance inventory for LIVE appliances that have
stopped reporting, drains them and then remediates them.

Every completed step is recorded and can be inspected through the
operations API.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Sentinel version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(operationsCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(configCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the remediation service",
	Long: `Run the scanner, the remediation workers and the HTTP API until
interrupted. On SIGINT or SIGTERM the scanner and dispatcher stop first, then
in-flight remediations get the configured grace period to finish.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return run(ctx, cfg)
	},
}

func init() {
	runCmd.Flags().StringP("config", "c", "", "Path to the YAML configuration file")
	runCmd.Flags().String("address", "", "HTTP API listen address (overrides server.address)")
	runCmd.Flags().String("data-dir", "", "Data directory (overrides storage.data_dir)")
	runCmd.Flags().String("log-level", "", "Log level: debug, info, warn, error (overrides log.level)")
	runCmd.Flags().Bool("log-json", false, "Emit JSON logs (overrides log.json)")
}

// loadConfig reads the file named by --config and applies flag overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if v, _ := cmd.Flags().GetString("address"); v != "" {
		cfg.Server.Address = v
	}
	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON, _ = cmd.Flags().GetBool("log-json")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// run wires the pipeline and blocks until ctx is done or the HTTP server fails
func run(ctx context.Context, cfg *config.Config) error {
	log.Init(cfg.LoggerConfig())
	metrics.SetVersion(Version)
	logger := log.WithComponent("main")

	store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.DataDir)
	if err != nil {
		metrics.RegisterComponent(metrics.ComponentStorage, false, err.Error())
		return fmt.Errorf("failed to open store: %w", err)
	}
	metrics.RegisterComponent(metrics.ComponentStorage, true, "")

	q, err := queue.New(cfg.Queue.MaxSize)
	if err != nil {
		store.Close()
		return err
	}

	classifier, err := staleness.NewClassifier(cfg.StaleThreshold())
	if err != nil {
		store.Close()
		return err
	}

	apiClient, err := client.NewClient(cfg.ClientConfig())
	if err != nil {
		store.Close()
		return err
	}

	broker := events.NewBroker()
	broker.Start()

	processor := remediation.NewProcessor(apiClient, store, q, broker)
	pool, err := remediation.NewPool(cfg.PoolConfig(), func(ctx context.Context, a types.Appliance) {
		processor.Process(ctx, a)
	})
	if err != nil {
		broker.Stop()
		store.Close()
		return err
	}

	dispatcher, err := remediation.NewDispatcher(q, pool, broker, cfg.Processing.DispatchInterval)
	if err != nil {
		broker.Stop()
		store.Close()
		return err
	}

	scan, err := scanner.NewScanner(apiClient, q, classifier, broker, cfg.ScannerConfig())
	if err != nil {
		broker.Stop()
		store.Close()
		return err
	}

	collector := metrics.NewCollector(q, 15*time.Second)
	server := api.NewServer(store, q, broker)

	pool.Start()
	dispatcher.Start()
	scan.Start()
	collector.Start()

	logger.Info().
		Str("version", Version).
		Str("address", cfg.Server.Address).
		Str("storage", cfg.Storage.Driver).
		Dur("stale_threshold", cfg.StaleThreshold()).
		Dur("scan_interval", cfg.Processing.ScanInterval).
		Int("workers", cfg.Processing.WorkerPoolSize).
		Msg("Sentinel started")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(cfg.Server.Address); err != nil {
			return fmt.Errorf("API server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down")

		scan.Stop()
		dispatcher.Stop()

		var errs []error
		if err := pool.Stop(cfg.Processing.ShutdownGrace); err != nil {
			logger.Warn().Err(err).Int("pending", q.Pending()).Msg("Abandoned in-flight remediations")
		}
		collector.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("API server shutdown: %w", err))
		}

		broker.Stop()
		if err := store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close store: %w", err))
		}

		logger.Info().Msg("Shutdown complete")
		return errors.Join(errs...)
	})

	return g.Wait()
}
