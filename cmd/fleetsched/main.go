package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sony/gobreaker"
	"github.com/spf13/cobra"

	"github.com/cuemby/fleetsched/pkg/asgsched"
	"github.com/cuemby/fleetsched/pkg/awsclients"
	fleetconfig "github.com/cuemby/fleetsched/pkg/config"
	"github.com/cuemby/fleetsched/pkg/leader"
	"github.com/cuemby/fleetsched/pkg/log"
	"github.com/cuemby/fleetsched/pkg/metrics"
	"github.com/cuemby/fleetsched/pkg/orchestrator"
	"github.com/cuemby/fleetsched/pkg/retry"
	"github.com/cuemby/fleetsched/pkg/schedule"
	"github.com/cuemby/fleetsched/pkg/storage"
	"github.com/cuemby/fleetsched/pkg/usage"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var configFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fleetsched",
	Short: "fleetsched starts and stops cloud resources on a schedule",
	Long: `fleetsched enforces operator-defined start/stop schedules across EC2
instances, RDS instances and clusters, and Auto Scaling groups spread
across any number of AWS accounts and regions, from a single binary.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"fleetsched version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "output logs in JSON format")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML configuration file")
	fleetconfig.BindFlags(rootCmd.PersistentFlags())

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tickCmd)
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(asgCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func loadConfig() (*fleetconfig.Config, error) {
	return fleetconfig.Load(rootCmd.PersistentFlags(), configFile)
}

func openStore(cfg *fleetconfig.Config) (storage.Store, error) {
	switch cfg.StoreBackend {
	case "postgres":
		return storage.NewPostgresStore(cfg.StoreDSN)
	case "bolt", "":
		return storage.NewBoltStore(cfg.StoreDSN)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// loadLibrary is the same list-and-compile sequence the orchestrator runs
// each tick, used directly by the read-only commands that don't need a
// full Orchestrator (usage, asg check-compatibility).
func loadLibrary(store storage.Store) (*schedule.Library, error) {
	schedules, err := store.ListSchedules()
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	periods, err := store.ListPeriods()
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	lib, diagnostics := schedule.NewLibrary(periods, schedules)
	for _, d := range diagnostics {
		fmt.Fprintf(os.Stderr, "warning: %v\n", d)
	}
	return lib, nil
}

func newBreakers() *retry.BreakerRegistry {
	return retry.NewBreakerRegistry(func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:    name,
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}
	})
}

// openElector builds a leader election node from the resolved raft
// settings, or returns nil when no node id is configured (single-replica
// deployments are always their own leader).
func openElector(cfg *fleetconfig.Config) (*leader.Node, error) {
	if cfg.RaftNodeID == "" {
		return nil, nil
	}
	node, err := leader.New(leader.Config{
		NodeID:   cfg.RaftNodeID,
		BindAddr: cfg.RaftBindAddr,
		DataDir:  cfg.RaftDataDir,
	})
	if err != nil {
		return nil, err
	}
	if len(cfg.RaftPeers) == 0 {
		if err := node.Bootstrap(); err != nil {
			return nil, fmt.Errorf("bootstrap raft cluster: %w", err)
		}
		return node, nil
	}
	if err := node.Join(); err != nil {
		return nil, fmt.Errorf("join raft cluster: %w", err)
	}
	return node, nil
}

func startMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/healthz", metrics.HealthHandler())
	mux.Handle("/readyz", metrics.ReadyHandler())
	mux.Handle("/livez", metrics.LivenessHandler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithComponent("metrics").Error().Err(err).Msg("metrics server stopped")
		}
	}()
	return srv
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the scheduling loop continuously, one tick per configured interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		metrics.SetVersion(Version)

		store, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}

		identity, err := awsclients.NewAssumeRoleFactory(cmd.Context(), cfg.AssumeRoleName)
		if err != nil {
			return fmt.Errorf("build identity broker: %w", err)
		}

		elector, err := openElector(cfg)
		if err != nil {
			return fmt.Errorf("start leader election: %w", err)
		}
		if elector != nil {
			defer func() { _ = elector.Shutdown() }()
		}

		oc, err := cfg.OrchestratorConfig(nil)
		if err != nil {
			return err
		}
		orch := orchestrator.New(oc, store, identity, newBreakers(), elector)

		metricsSrv := startMetricsServer(cfg.MetricsAddr)
		defer func() { _ = metricsSrv.Shutdown(context.Background()) }()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := log.WithComponent("fleetsched")
		logger.Info().Dur("interval", cfg.TickInterval).Str("metrics_addr", cfg.MetricsAddr).Msg("starting scheduling loop")

		if err := orch.Tick(ctx, time.Now().UTC()); err != nil {
			logger.Error().Err(err).Msg("initial tick failed")
		}

		ticker := time.NewTicker(cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logger.Info().Msg("shutting down")
				return nil
			case t := <-ticker.C:
				if err := orch.Tick(ctx, t.UTC()); err != nil {
					logger.Error().Err(err).Msg("tick failed")
				}
			}
		}
	},
}

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "run a single scheduling tick and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}

		identity, err := awsclients.NewAssumeRoleFactory(cmd.Context(), cfg.AssumeRoleName)
		if err != nil {
			return fmt.Errorf("build identity broker: %w", err)
		}

		oc, err := cfg.OrchestratorConfig(nil)
		if err != nil {
			return err
		}
		orch := orchestrator.New(oc, store, identity, newBreakers(), nil)
		return orch.Tick(cmd.Context(), time.Now().UTC())
	},
}

var usageStart, usageEnd string

var usageCmd = &cobra.Command{
	Use:   "usage <schedule-name>",
	Short: "report the running intervals and billed hours a schedule would produce over a date range",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		lib, err := loadLibrary(store)
		if err != nil {
			return err
		}
		sched, ok := lib.Schedule(args[0])
		if !ok {
			return fmt.Errorf("unknown schedule %q", args[0])
		}

		if usageEnd == "" {
			usageEnd = usageStart
		}
		start, err := time.Parse("2006-01-02", usageStart)
		if err != nil {
			return fmt.Errorf("parse --start: %w", err)
		}
		end, err := time.Parse("2006-01-02", usageEnd)
		if err != nil {
			return fmt.Errorf("parse --end: %w", err)
		}

		report, err := usage.Compute(lib, sched, start, end, nil)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	usageCmd.Flags().StringVar(&usageStart, "start", "", "start date (YYYY-MM-DD)")
	usageCmd.Flags().StringVar(&usageEnd, "end", "", "end date (YYYY-MM-DD), defaults to --start")
	_ = usageCmd.MarkFlagRequired("start")
}

var asgCmd = &cobra.Command{
	Use:   "asg",
	Short: "auto scaling group scheduling utilities",
}

var asgCheckCompatCmd = &cobra.Command{
	Use:   "check-compatibility <schedule-name>",
	Short: "report whether a schedule can be expressed entirely as scheduled actions on an auto scaling group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		lib, err := loadLibrary(store)
		if err != nil {
			return err
		}
		sched, ok := lib.Schedule(args[0])
		if !ok {
			return fmt.Errorf("unknown schedule %q", args[0])
		}

		supported, reason := asgsched.CheckCompatibility(lib, sched)
		if supported {
			fmt.Println("compatible")
			return nil
		}
		fmt.Printf("incompatible: %s\n", reason)
		return nil
	},
}

func init() {
	asgCmd.AddCommand(asgCheckCompatCmd)
}
