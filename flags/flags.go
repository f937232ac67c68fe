package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	opflags "github.com/ethereum-optimism/optimism/op-service/flags"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const EnvVarPrefix = "PAYAUDIT"

// RunMode selects which part of the audit a run executes
type RunMode string

const (
	RunModePhases RunMode = "phases"
	RunModeTests  RunMode = "tests"
	RunModeAll    RunMode = "all"
)

func (m RunMode) String() string {
	return string(m)
}

// IsValid checks if the run mode is known
func (m RunMode) IsValid() bool {
	switch m {
	case RunModePhases, RunModeTests, RunModeAll:
		return true
	}
	return false
}

// RunsPhases reports whether the mode includes the phase run
func (m RunMode) RunsPhases() bool {
	return m == RunModePhases || m == RunModeAll
}

// RunsTests reports whether the mode includes the test batch
func (m RunMode) RunsTests() bool {
	return m == RunModeTests || m == RunModeAll
}

// ValidRunModes returns all known run modes
func ValidRunModes() []RunMode {
	return []RunMode{RunModePhases, RunModeTests, RunModeAll}
}

func validateRunMode(value string) error {
	if !RunMode(value).IsValid() {
		return fmt.Errorf("mode must be one of %v, got %q", ValidRunModes(), value)
	}
	return nil
}

var (
	Plan = &cli.StringFlag{
		Name:     "plan",
		Value:    "",
		Required: true,
		EnvVars:  opservice.PrefixEnvVar(EnvVarPrefix, "PLAN"),
		Usage:    "Path to the audit plan file (eg. 'plan.yaml'), or 'default' for the built-in plan",
	}
	ProbeConfig = &cli.StringFlag{
		Name:    "probe-config",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PROBE_CONFIG"),
		Usage:   "Path to the probe endpoint config (eg. 'probe.toml'). Required unless --simulate is set",
	}
	Mode = &cli.StringFlag{
		Name:    "mode",
		Value:   string(RunModeAll),
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "MODE"),
		Usage:   "What to run: 'phases', 'tests' or 'all'",
		Action: func(_ *cli.Context, value string) error {
			return validateRunMode(value)
		},
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_INTERVAL"),
		Usage:   "Interval between audit runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	ReportDir = &cli.StringFlag{
		Name:    "report-dir",
		Value:   "reports",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REPORT_DIR"),
		Usage:   "Directory report artifacts are written to. Empty disables file output.",
	}
	RedisURL = &cli.StringFlag{
		Name:    "redis-url",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REDIS_URL"),
		Usage:   "Redis URL for the latest-report store. Reports are kept in memory when empty.",
	}
	InterTestDelay = &cli.DurationFlag{
		Name:    "inter-test-delay",
		Value:   500 * time.Millisecond,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "INTER_TEST_DELAY"),
		Usage:   "Minimum spacing between test starts in batch mode",
	}
	SubSteps = &cli.IntFlag{
		Name:    "sub-steps",
		Value:   10,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SUB_STEPS"),
		Usage:   "Number of uniform sub-steps each phase is split into",
	}
	StepDelay = &cli.DurationFlag{
		Name:    "step-delay",
		Value:   200 * time.Millisecond,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "STEP_DELAY"),
		Usage:   "Duration of one simulated sub-step or endpoint call (only with --simulate)",
	}
	Simulate = &cli.BoolFlag{
		Name:    "simulate",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SIMULATE"),
		Usage:   "Simulate phase work and endpoint calls instead of calling the configured probe",
	}
	ShowProgress = &cli.BoolFlag{
		Name:    "show-progress",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SHOW_PROGRESS"),
		Usage:   "Log periodic progress updates while an audit is running",
	}
	ProgressInterval = &cli.DurationFlag{
		Name:    "progress-interval",
		Value:   30 * time.Second,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PROGRESS_INTERVAL"),
		Usage:   "Interval between progress updates when --show-progress is set",
	}
	APIAddr = &cli.StringFlag{
		Name:    "api-addr",
		Value:   "0.0.0.0:8090",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "API_ADDR"),
		Usage:   "Listen address of the report API. Empty disables it.",
	}
	HealthzAddr = &cli.StringFlag{
		Name:    "healthz-addr",
		Value:   "0.0.0.0:8080",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEALTHZ_ADDR"),
		Usage:   "Listen address of the healthz server. Empty disables it.",
	}
)

var requiredFlags = []cli.Flag{
	Plan,
}

var optionalFlags = []cli.Flag{
	ProbeConfig,
	Mode,
	RunInterval,
	ReportDir,
	RedisURL,
	InterTestDelay,
	SubSteps,
	StepDelay,
	Simulate,
	ShowProgress,
	ProgressInterval,
	APIAddr,
	HealthzAddr,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return opflags.CheckRequiredXor(ctx)
}
