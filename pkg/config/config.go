/*
Package config layers the operator-facing settings for fleetsched: flag
defaults, an optional YAML file, environment variables, and explicitly
set flags, in that increasing order of precedence, the same way
github.com/spf13/viper lets any caller of pflag.FlagSet get it for free.
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cuemby/fleetsched/pkg/asgsched"
	"github.com/cuemby/fleetsched/pkg/awsclients"
	"github.com/cuemby/fleetsched/pkg/orchestrator"
	"github.com/cuemby/fleetsched/pkg/retry"
	"github.com/cuemby/fleetsched/pkg/schedule"
	"github.com/cuemby/fleetsched/pkg/targetsched"
	"github.com/cuemby/fleetsched/pkg/types"
)

const envPrefix = "FLEETSCHED"

// keys lists every bound setting, flag-dash-cased and shared verbatim as
// the viper key, the mapstructure tag, and (with dashes folded to
// underscores and the prefix added) the environment variable name.
var keys = []string{
	"schedule-tag-key",
	"mdm-tag-key",
	"error-tag-key",
	"error-message-tag-key",
	"asg-action-prefix",
	"services",
	"accounts",
	"regions",
	"tick-interval",
	"payload-threshold-bytes",
	"concurrency",
	"store-backend",
	"store-dsn",
	"assume-role-name",
	"retry-max-attempts",
	"retry-base-delay",
	"retry-max-delay",
	"raft-node-id",
	"raft-bind-addr",
	"raft-data-dir",
	"raft-peers",
	"metrics-addr",
	"stack-name",
	"enable-rds-snapshots",
}

// Config is the fully resolved operator configuration. It is the single
// source every per-target worker config and the orchestrator config are
// built from, so an operator never sets the same knob (the schedule tag
// key, the retry posture) in two places.
type Config struct {
	ScheduleTagKey     string   `mapstructure:"schedule-tag-key"`
	MDMTagKey          string   `mapstructure:"mdm-tag-key"`
	ErrorTagKey        string   `mapstructure:"error-tag-key"`
	ErrorMessageTagKey string   `mapstructure:"error-message-tag-key"`
	ASGActionPrefix    string   `mapstructure:"asg-action-prefix"`
	Services           []string `mapstructure:"services"`
	Accounts           []string `mapstructure:"accounts"`
	Regions            []string `mapstructure:"regions"`

	TickInterval          time.Duration `mapstructure:"tick-interval"`
	PayloadThresholdBytes int           `mapstructure:"payload-threshold-bytes"`
	Concurrency           int           `mapstructure:"concurrency"`

	StoreBackend string `mapstructure:"store-backend"` // "bolt" or "postgres"
	StoreDSN     string `mapstructure:"store-dsn"`     // bolt: data directory; postgres: connection string

	AssumeRoleName string `mapstructure:"assume-role-name"`

	RetryMaxAttempts int           `mapstructure:"retry-max-attempts"`
	RetryBaseDelay   time.Duration `mapstructure:"retry-base-delay"`
	RetryMaxDelay    time.Duration `mapstructure:"retry-max-delay"`

	RaftNodeID   string   `mapstructure:"raft-node-id"`
	RaftBindAddr string   `mapstructure:"raft-bind-addr"`
	RaftDataDir  string   `mapstructure:"raft-data-dir"`
	RaftPeers    []string `mapstructure:"raft-peers"`

	MetricsAddr string `mapstructure:"metrics-addr"`

	// StackName identifies this deployment for resource naming, e.g. the
	// pre-stop snapshot identifier {stack-name}-stopped-{id}.
	StackName          string `mapstructure:"stack-name"`
	EnableRDSSnapshots bool   `mapstructure:"enable-rds-snapshots"`
}

// BindFlags registers every setting on flags, with its default value, so
// `--help` always shows the full surface regardless of what a config file
// or the environment later overrides.
func BindFlags(flags *pflag.FlagSet) {
	flags.String("schedule-tag-key", "Schedule", "tag key naming the schedule a resource follows")
	flags.String("mdm-tag-key", "IS-MinDesiredMax", "tag key storing an auto-scaling group's saved min/desired/max")
	flags.String("error-tag-key", "IS-Error", "tag key marking a resource with a scheduling error")
	flags.String("error-message-tag-key", "IS-ErrorMessage", "tag key holding the error detail")
	flags.String("asg-action-prefix", "IS-", "prefix for scheduled action names installed on auto-scaling groups")
	flags.StringSlice("services", []string{"ec2"}, "enabled services: ec2, rds-instance, autoscaling")
	flags.StringSlice("accounts", nil, "enabled AWS account ids")
	flags.StringSlice("regions", nil, "enabled AWS regions")
	flags.Duration("tick-interval", 5*time.Minute, "interval between scheduling ticks")
	flags.Int("payload-threshold-bytes", orchestrator.DefaultPayloadThresholdBytes, "per-target dispatch payload size a worker request is trimmed to fit under")
	flags.Int("concurrency", 16, "maximum number of targets dispatched concurrently per tick")
	flags.String("store-backend", "bolt", "registry storage backend: bolt or postgres")
	flags.String("store-dsn", "./fleetsched-data", "bolt: data directory; postgres: connection string")
	flags.String("assume-role-name", "", "IAM role name assumed in every enabled account (empty uses the caller's own credentials)")
	flags.Int("retry-max-attempts", retry.DefaultBackoff.MaxAttempts, "maximum attempts for a transient cloud API error")
	flags.Duration("retry-base-delay", retry.DefaultBackoff.BaseDelay, "base backoff delay before the first retry")
	flags.Duration("retry-max-delay", retry.DefaultBackoff.MaxDelay, "backoff delay ceiling")
	flags.String("raft-node-id", "", "this replica's leader-election node id (empty disables leader election)")
	flags.String("raft-bind-addr", "127.0.0.1:7946", "address this replica's leader-election transport binds to")
	flags.String("raft-data-dir", "./fleetsched-raft", "leader-election log and snapshot directory")
	flags.StringSlice("raft-peers", nil, "addresses of the other replicas participating in leader election")
	flags.String("metrics-addr", ":9090", "address the Prometheus metrics and health endpoints listen on")
	flags.String("stack-name", "fleetsched", "deployment name used in generated resource names, e.g. RDS pre-stop snapshots")
	flags.Bool("enable-rds-snapshots", false, "take a final snapshot named {stack-name}-stopped-{id} before stopping an RDS instance")
}

// Load resolves flags, then the environment, then an optional YAML file
// (file lowest, flags highest — matching the precedence viper documents
// for BindPFlags layered under ReadInConfig) into a Config.
func Load(flags *pflag.FlagSet, configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read config file %s: %w", configFile, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("config: bind env for %s: %w", key, err)
		}
	}

	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("config: bind flags: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// ServiceKinds parses the configured service names into resource kinds
// the orchestrator enumerates targets for.
func (c *Config) ServiceKinds() ([]types.ResourceKind, error) {
	kinds := make([]types.ResourceKind, 0, len(c.Services))
	for _, s := range c.Services {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "ec2":
			kinds = append(kinds, types.KindEC2Instance)
		case "rds", "rds-instance":
			// KindRDSInstance stands for the whole RDS worker, which
			// discovers both standalone instances and clusters.
			kinds = append(kinds, types.KindRDSInstance)
		case "autoscaling", "asg":
			kinds = append(kinds, types.KindAutoScaling)
		default:
			return nil, fmt.Errorf("config: unknown service %q", s)
		}
	}
	return kinds, nil
}

// Backoff builds the shared retry posture from the resolved attempt and
// delay settings.
func (c *Config) Backoff() retry.BackoffConfig {
	return retry.BackoffConfig{
		MaxAttempts: c.RetryMaxAttempts,
		BaseDelay:   c.RetryBaseDelay,
		MaxDelay:    c.RetryMaxDelay,
	}
}

// TagPolicy builds the start/stop tag sets every per-target worker
// applies after a successful action: a single state marker flipped
// between "running" and "stopped".
func (c *Config) TagPolicy() targetsched.TagPolicy {
	return targetsched.TagPolicy{
		StartTags: map[string]string{"Schedule-State": "running"},
		StopTags:  map[string]string{"Schedule-State": "stopped"},
	}
}

// TargetSchedConfig builds the EC2/RDS worker config shared policy.
func (c *Config) TargetSchedConfig() targetsched.Config {
	return targetsched.Config{
		ScheduleTagKey:       c.ScheduleTagKey,
		Tags:                 c.TagPolicy(),
		Backoff:              c.Backoff(),
		IsTransient:          awsclients.IsTransient,
		HibernateUnsupported: awsclients.IsUnsupportedHibernation,
		EnableRDSSnapshots:   c.EnableRDSSnapshots,
		StackName:            c.StackName,
	}
}

// ASGSchedConfig builds the auto-scaling worker config from the resolved
// settings.
func (c *Config) ASGSchedConfig() asgsched.Config {
	return asgsched.Config{
		ScheduleTagKey:     c.ScheduleTagKey,
		MDMTagKey:          c.MDMTagKey,
		ErrorTagKey:        c.ErrorTagKey,
		ErrorMessageTagKey: c.ErrorMessageTagKey,
		ActionNamePrefix:   c.ASGActionPrefix,
		Backoff:            c.Backoff(),
		IsTransient:        awsclients.IsTransient,
	}
}

// OrchestratorConfig builds the orchestrator's top-level config from the
// resolved settings. The caller still supplies the maintenance window
// checker, since that depends on a schedule library loaded at runtime.
func (c *Config) OrchestratorConfig(window schedule.MaintenanceWindowChecker) (orchestrator.Config, error) {
	kinds, err := c.ServiceKinds()
	if err != nil {
		return orchestrator.Config{}, err
	}
	return orchestrator.Config{
		Services:              kinds,
		Accounts:              c.Accounts,
		Regions:               c.Regions,
		Concurrency:           c.Concurrency,
		PayloadThresholdBytes: c.PayloadThresholdBytes,
		TargetSched:           c.TargetSchedConfig(),
		ASGSched:              c.ASGSchedConfig(),
		Window:                window,
	}, nil
}
