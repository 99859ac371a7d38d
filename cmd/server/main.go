package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/truthsource/syncwatch/internal/alerting"
	"github.com/truthsource/syncwatch/internal/api"
	"github.com/truthsource/syncwatch/internal/api/health"
	"github.com/truthsource/syncwatch/internal/checker"
	"github.com/truthsource/syncwatch/internal/metrics"
	"github.com/truthsource/syncwatch/internal/models"
	"github.com/truthsource/syncwatch/internal/notifier"
	"github.com/truthsource/syncwatch/internal/remediation"
	"github.com/truthsource/syncwatch/internal/scheduler"
	"github.com/truthsource/syncwatch/internal/scoring"
	"github.com/truthsource/syncwatch/internal/source"
	"github.com/truthsource/syncwatch/internal/storage"
	"github.com/truthsource/syncwatch/pkg/config"
)

var (
	configFile string
	apiAddr    string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "syncwatch-server",
	Short: "SyncWatch Server - Data accuracy monitoring service",
	Long: `SyncWatch Server scans synced records for drift against their source
of truth, scores accuracy, raises alerts, and remediates safe cases
automatically.`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("syncwatch-server %s\n", config.Version)
		fmt.Printf("  commit: %s\n", config.Commit)
		fmt.Printf("  built:  %s\n", config.BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVarP(&apiAddr, "address", "a", "", "HTTP API listen address")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	var cfg *Config

	if configFile != "" {
		var err error
		cfg, err = LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = DefaultConfig()
	}

	if apiAddr != "" {
		cfg.API.Address = apiAddr
	}
	cfg.Verbose = verbose

	// Auto-create data directory
	dbDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	store := storage.NewSQLiteStore(cfg.Database.Path)
	if err := store.Open(); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	log.Printf("database initialized at %s", cfg.Database.Path)

	// Score snapshots go to ClickHouse when configured, SQLite otherwise.
	var metricStore storage.MetricStore = store
	var chStore *storage.ClickHouseMetricStore
	if cfg.ClickHouse.Enabled {
		chStore = storage.NewClickHouseMetricStore(&storage.ClickHouseConfig{
			Addresses: cfg.ClickHouse.Addresses,
			Database:  cfg.ClickHouse.Database,
			Username:  cfg.ClickHouse.Username,
			Password:  cfg.ClickHouse.Password,
		})
		if err := chStore.Open(); err != nil {
			return fmt.Errorf("open clickhouse: %w", err)
		}
		defer chStore.Close()
		if err := chStore.Migrate(); err != nil {
			return fmt.Errorf("migrate clickhouse: %w", err)
		}
		metricStore = chStore
		log.Printf("metric backend: clickhouse %v", cfg.ClickHouse.Addresses)
	}

	platform, err := source.NewPlatformClient(&source.PlatformConfig{
		BaseURL:  cfg.Platform.BaseURL,
		APIToken: os.Getenv("SYNCWATCH_PLATFORM_TOKEN"),
		Timeout:  cfg.Platform.Timeout,
	})
	if err != nil {
		return fmt.Errorf("platform client: %w", err)
	}

	checkerOpts := checker.DefaultOptions()
	if cfg.Checker.SampleSize > 0 {
		checkerOpts.SampleSize = cfg.Checker.SampleSize
	}
	if cfg.Checker.Parallelism > 0 {
		checkerOpts.Parallelism = cfg.Checker.Parallelism
	}
	if cfg.Checker.TxnReconcileTolerance > 0 {
		checkerOpts.TxnReconcileTolerance = cfg.Checker.TxnReconcileTolerance
	}
	chk := checker.New(store, metricStore.Metrics(), platform, nil, checkerOpts)

	// Remediation engine doubles as the alert manager's queue.
	var queue alerting.RemediationQueue
	var engine *remediation.Engine
	if cfg.Remediation.Enabled {
		remOpts := remediation.DefaultOptions()
		if cfg.Remediation.Throttle > 0 {
			remOpts.Throttle = cfg.Remediation.Throttle
		}
		if cfg.Remediation.SyncPollTimeout > 0 {
			remOpts.SyncPollTimeout = cfg.Remediation.SyncPollTimeout
		}
		if cfg.Remediation.MaxChangesPerRun > 0 {
			remOpts.MaxChangesPerRun = cfg.Remediation.MaxChangesPerRun
		}
		engine = remediation.NewEngine(store, platform, platform, nil, remOpts)
		queue = engine
	}

	manager := alerting.NewManager(store, nil, queue)

	// Bootstrap alert rules from file, then keep them in sync.
	if cfg.Alerting.RulesFile != "" {
		rules, err := alerting.LoadRulesFromFile(cfg.Alerting.RulesFile, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("load rules file: %w", err)
		}
		if err := alerting.SyncRules(context.Background(), store, rules); err != nil {
			return fmt.Errorf("sync rules: %w", err)
		}
		log.Printf("loaded %d alert rules from %s", len(rules), cfg.Alerting.RulesFile)
	}

	dispatcher := notifier.NewDispatcherWithRateLimit(notifier.RateLimitConfig{
		MaxPerWindow: cfg.Notifier.MaxPerMinute,
		Window:       time.Minute,
		Enabled:      true,
	})
	defer dispatcher.Close()
	if err := registerChannels(dispatcher, &cfg.Notifier); err != nil {
		return err
	}

	apiCfg := &api.Config{
		Address:         cfg.API.Address,
		HTTPTLSEnabled:  cfg.API.TLS.Enabled,
		HTTPTLSCertFile: cfg.API.TLS.CertFile,
		HTTPTLSKeyFile:  cfg.API.TLS.KeyFile,
		RateLimitPerIP:  cfg.API.RateLimitPerIP,
		Verbose:         cfg.Verbose,
	}
	if cfg.Benchmark.Mean > 0 {
		apiCfg.Benchmark = &scoring.Baseline{Mean: cfg.Benchmark.Mean, StdDev: cfg.Benchmark.StdDev}
	}
	srv, err := api.New(apiCfg, store, metricStore, chk, manager)
	if err != nil {
		return fmt.Errorf("create API server: %w", err)
	}
	srv.RegisterHealthChecker(health.NewSQLiteChecker(store.DB()))
	if chStore != nil {
		srv.RegisterHealthChecker(health.NewClickHouseChecker(chStore))
	}

	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	log.Printf("starting syncwatch-server %s", config.Version)
	metrics.SetBuildInfo(config.Version, config.Commit, config.BuildTime)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		metricsSrv := metrics.NewServer(cfg.Metrics.Address)
		g.Go(func() error {
			return metricsSrv.Start()
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	if engine != nil {
		g.Go(func() error {
			engine.Run(ctx)
			return nil
		})
	}

	sweeper := alerting.NewSweeper(store, nil, cfg.Alerting.SnoozeSweep)
	g.Go(func() error {
		sweeper.Run(ctx)
		return nil
	})

	delivery := notifier.NewDeliveryWorker(store, dispatcher, nil, cfg.Alerting.DeliverySweep)
	g.Go(func() error {
		delivery.Run(ctx)
		return nil
	})

	if cfg.Alerting.RulesFile != "" {
		g.Go(func() error {
			return alerting.WatchRulesFile(ctx, store, cfg.Alerting.RulesFile)
		})
	}

	if len(cfg.Scheduler.Organizations) > 0 {
		sched := scheduler.New(&scheduler.Config{
			Organizations: cfg.Scheduler.Organizations,
			Scope:         models.ParseCheckScope(cfg.Scheduler.Scope),
			Sensitivity:   cfg.Scheduler.Sensitivity,
		}, chk, manager, store, nil)
		g.Go(func() error {
			sched.Run(ctx)
			return nil
		})
	}

	g.Go(func() error {
		return srv.Run(ctx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run server: %w", err)
	}

	log.Printf("server stopped")
	return nil
}

// registerChannels wires every configured notification channel.
func registerChannels(d *notifier.Dispatcher, cfg *NotifierConfig) error {
	if cfg.Slack.WebhookURL != "" {
		n, err := notifier.NewSlackNotifier(notifier.SlackConfig{WebhookURL: cfg.Slack.WebhookURL})
		if err != nil {
			return fmt.Errorf("slack notifier: %w", err)
		}
		d.Register(n)
		log.Printf("notification channel registered: slack")
	}
	if cfg.Email.Host != "" {
		n, err := notifier.NewEmailNotifier(notifier.EmailConfig{
			Host:       cfg.Email.Host,
			Port:       cfg.Email.Port,
			Username:   cfg.Email.Username,
			Password:   cfg.Email.Password,
			From:       cfg.Email.From,
			Recipients: cfg.Email.Recipients,
		})
		if err != nil {
			return fmt.Errorf("email notifier: %w", err)
		}
		d.Register(n)
		log.Printf("notification channel registered: email")
	}
	if cfg.Webhook.URL != "" {
		n, err := notifier.NewWebhookNotifier(notifier.WebhookConfig{
			URL:     cfg.Webhook.URL,
			Headers: cfg.Webhook.Headers,
		})
		if err != nil {
			return fmt.Errorf("webhook notifier: %w", err)
		}
		d.Register(n)
		log.Printf("notification channel registered: webhook")
	}
	return nil
}
