package auditor

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/lipa-labs/payaudit/flags"
	"github.com/lipa-labs/payaudit/registry"
)

// Config holds the application configuration
type Config struct {
	PlanFile         string        // Plan file path, or registry.DefaultPlanName
	ProbeConfigFile  string        // Probe endpoint config (TOML)
	Mode             flags.RunMode // What a run executes
	RunInterval      time.Duration // Interval between audit runs
	RunOnce          bool          // Indicates if the service should exit after one run
	ReportDir        string        // Directory for report artifacts, empty disables file output
	RedisURL         string        // Latest-report store, memory when empty
	InterTestDelay   time.Duration // Minimum spacing between test starts in batch mode
	SubSteps         int           // Sub-steps per phase
	StepDelay        time.Duration // Duration of one simulated sub-step or endpoint call
	Simulate         bool          // Simulate phase work and endpoints instead of probing
	ShowProgress     bool          // Whether to show periodic progress updates during a run
	ProgressInterval time.Duration // Interval between progress updates when ShowProgress is 'true'
	APIAddr          string        // Report API listen address, empty disables it
	HealthzAddr      string        // Healthz listen address, empty disables it
	MetricsAddr      string        // Metrics listen address, empty disables it
	Log              log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	planFile, err := resolvePath(ctx.String(flags.Plan.Name))
	if err != nil {
		return nil, err
	}
	probeConfig := ctx.String(flags.ProbeConfig.Name)
	if probeConfig != "" {
		if probeConfig, err = filepath.Abs(probeConfig); err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for probe config '%s': %w", ctx.String(flags.ProbeConfig.Name), err)
		}
	}

	var metricsAddr string
	metricsCfg := opmetrics.ReadCLIConfig(ctx)
	if metricsCfg.Enabled {
		metricsAddr = net.JoinHostPort(metricsCfg.ListenAddr, strconv.Itoa(metricsCfg.ListenPort))
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	cfg := &Config{
		PlanFile:         planFile,
		ProbeConfigFile:  probeConfig,
		Mode:             flags.RunMode(ctx.String(flags.Mode.Name)),
		RunInterval:      runInterval,
		RunOnce:          runInterval == 0,
		ReportDir:        ctx.String(flags.ReportDir.Name),
		RedisURL:         ctx.String(flags.RedisURL.Name),
		InterTestDelay:   ctx.Duration(flags.InterTestDelay.Name),
		SubSteps:         ctx.Int(flags.SubSteps.Name),
		StepDelay:        ctx.Duration(flags.StepDelay.Name),
		Simulate:         ctx.Bool(flags.Simulate.Name),
		ShowProgress:     ctx.Bool(flags.ShowProgress.Name),
		ProgressInterval: ctx.Duration(flags.ProgressInterval.Name),
		APIAddr:          ctx.String(flags.APIAddr.Name),
		HealthzAddr:      ctx.String(flags.HealthzAddr.Name),
		MetricsAddr:      metricsAddr,
		Log:              log,
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Check validates the configuration
func (c *Config) Check() error {
	if c.PlanFile == "" {
		return errors.New("plan file is required")
	}
	if !c.Mode.IsValid() {
		return fmt.Errorf("invalid mode %q", c.Mode)
	}
	if c.RunInterval < 0 {
		return errors.New("run interval must not be negative")
	}
	if c.InterTestDelay < 0 {
		return errors.New("inter-test delay must not be negative")
	}
	if c.SubSteps <= 0 {
		return errors.New("sub-steps must be positive")
	}
	if !c.Simulate && c.ProbeConfigFile == "" {
		return errors.New("probe config is required unless simulate is enabled")
	}
	return nil
}

func resolvePath(path string) (string, error) {
	if path == "" || path == registry.DefaultPlanName {
		return path, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for plan '%s': %w", path, err)
	}
	return abs, nil
}
