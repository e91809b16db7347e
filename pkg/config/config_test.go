package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func newFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(flags)
	return flags
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newFlags(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ScheduleTagKey != "Schedule" {
		t.Errorf("ScheduleTagKey = %q, want Schedule", cfg.ScheduleTagKey)
	}
	if cfg.TickInterval != 5*time.Minute {
		t.Errorf("TickInterval = %s, want 5m", cfg.TickInterval)
	}
	if cfg.StoreBackend != "bolt" {
		t.Errorf("StoreBackend = %q, want bolt", cfg.StoreBackend)
	}
	if len(cfg.Services) != 1 || cfg.Services[0] != "ec2" {
		t.Errorf("Services = %v, want [ec2]", cfg.Services)
	}
	if cfg.StackName != "fleetsched" {
		t.Errorf("StackName = %q, want fleetsched", cfg.StackName)
	}
	if cfg.EnableRDSSnapshots {
		t.Error("EnableRDSSnapshots default should be false")
	}
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	t.Setenv("FLEETSCHED_SCHEDULE_TAG_KEY", "CustomSchedule")
	t.Setenv("FLEETSCHED_PAYLOAD_THRESHOLD_BYTES", "50000")

	cfg, err := Load(newFlags(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ScheduleTagKey != "CustomSchedule" {
		t.Errorf("ScheduleTagKey = %q, want CustomSchedule", cfg.ScheduleTagKey)
	}
	if cfg.PayloadThresholdBytes != 50000 {
		t.Errorf("PayloadThresholdBytes = %d, want 50000", cfg.PayloadThresholdBytes)
	}
}

func TestLoadFlagOverridesEnv(t *testing.T) {
	t.Setenv("FLEETSCHED_SCHEDULE_TAG_KEY", "FromEnv")

	flags := newFlags()
	if err := flags.Set("schedule-tag-key", "FromFlag"); err != nil {
		t.Fatalf("flags.Set: %v", err)
	}
	cfg, err := Load(flags, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ScheduleTagKey != "FromFlag" {
		t.Errorf("ScheduleTagKey = %q, want FromFlag (flag wins over env)", cfg.ScheduleTagKey)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fleetsched.yaml")
	contents := "schedule-tag-key: FromFile\naccounts:\n  - \"111111111111\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(newFlags(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ScheduleTagKey != "FromFile" {
		t.Errorf("ScheduleTagKey = %q, want FromFile", cfg.ScheduleTagKey)
	}
	if len(cfg.Accounts) != 1 || cfg.Accounts[0] != "111111111111" {
		t.Errorf("Accounts = %v, want [111111111111]", cfg.Accounts)
	}
}

func TestServiceKindsRejectsUnknownService(t *testing.T) {
	cfg := &Config{Services: []string{"ec2", "bogus"}}
	if _, err := cfg.ServiceKinds(); err == nil {
		t.Error("expected an error for an unrecognized service name")
	}
}

func TestServiceKindsMapsEveryKnownName(t *testing.T) {
	cfg := &Config{Services: []string{"ec2", "rds-instance", "autoscaling"}}
	kinds, err := cfg.ServiceKinds()
	if err != nil {
		t.Fatalf("ServiceKinds: %v", err)
	}
	if len(kinds) != 3 {
		t.Fatalf("got %d kinds, want 3: %v", len(kinds), kinds)
	}
}

func TestOrchestratorConfigPropagatesNestedSettings(t *testing.T) {
	cfg, err := Load(newFlags(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	oc, err := cfg.OrchestratorConfig(nil)
	if err != nil {
		t.Fatalf("OrchestratorConfig: %v", err)
	}
	if oc.TargetSched.ScheduleTagKey != cfg.ScheduleTagKey {
		t.Errorf("TargetSched.ScheduleTagKey = %q, want %q", oc.TargetSched.ScheduleTagKey, cfg.ScheduleTagKey)
	}
	if oc.ASGSched.ActionNamePrefix != cfg.ASGActionPrefix {
		t.Errorf("ASGSched.ActionNamePrefix = %q, want %q", oc.ASGSched.ActionNamePrefix, cfg.ASGActionPrefix)
	}
	if oc.Concurrency != cfg.Concurrency {
		t.Errorf("Concurrency = %d, want %d", oc.Concurrency, cfg.Concurrency)
	}
	if oc.TargetSched.StackName != cfg.StackName {
		t.Errorf("TargetSched.StackName = %q, want %q", oc.TargetSched.StackName, cfg.StackName)
	}
	if oc.TargetSched.IsTransient == nil {
		t.Error("TargetSched.IsTransient is nil, retry.WithBackoff will panic on the first real error")
	}
	if oc.TargetSched.HibernateUnsupported == nil {
		t.Error("TargetSched.HibernateUnsupported is nil, hibernate failures can never fall back to a plain stop")
	}
	if oc.ASGSched.IsTransient == nil {
		t.Error("ASGSched.IsTransient is nil, retry.WithBackoff will panic on the first real error")
	}
}
