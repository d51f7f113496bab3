package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mkrell/chaincheck/internal/stage"
)

// Config captures pipeline options sourced from .chaincheck.yml or flags.
type Config struct {
	Pipeline string `yaml:"pipeline"`

	Node      NodeConfig      `yaml:"node"`
	Readiness ReadinessConfig `yaml:"readiness"`
	Stages    []stage.Stage   `yaml:"stages"`
	GitHub    GitHubConfig    `yaml:"github"`
	Report    ReportConfig    `yaml:"report"`

	OnlyStages []string `yaml:"only_stage"`
	SkipStages []string `yaml:"skip_stage"`

	StageTimeout Duration `yaml:"stage_timeout"`

	DryRun  bool   `yaml:"dry_run"`
	Verbose bool   `yaml:"verbose"`
	Format  string `yaml:"format"`
}

// NodeConfig describes how to build, start, and reach the throwaway node.
type NodeConfig struct {
	RPCURL  string `yaml:"rpc_url"`
	DataDir string `yaml:"data_dir"`
	Build   string `yaml:"build"`
	Start   string `yaml:"start"`
}

// ReadinessConfig bounds the two readiness probes. Delays and budgets are
// configurable rather than hard-coded.
type ReadinessConfig struct {
	ProtocolAttempts int      `yaml:"protocol_attempts"`
	ProtocolDelay    Duration `yaml:"protocol_delay"`
	ProgressAttempts int      `yaml:"progress_attempts"`
	ProgressDelay    Duration `yaml:"progress_delay"`
	MinAdvance       uint64   `yaml:"min_advance"`
}

// GitHubConfig locates the repository that receives commit statuses.
type GitHubConfig struct {
	Owner   string `yaml:"owner"`
	Repo    string `yaml:"repo"`
	BaseURL string `yaml:"base_url"`
	// TokenEnv names the environment variable holding the API token.
	TokenEnv string `yaml:"token_env"`
}

// ReportConfig controls where run bundles land.
type ReportConfig struct {
	Dir      string `yaml:"dir"`
	S3Bucket string `yaml:"s3_bucket"`
	S3Prefix string `yaml:"s3_prefix"`
}

const (
	// FormatPretty renders human readable output.
	FormatPretty = "pretty"
	// FormatJSON renders machine readable output.
	FormatJSON = "json"

	// FileName is the config file looked up at the repository root.
	FileName = ".chaincheck.yml"
)

// Default returns the baseline configuration used when no config file or
// flags specify values.
func Default() Config {
	return Config{
		Pipeline: "chaincheck-conformance",
		Node: NodeConfig{
			RPCURL: "http://127.0.0.1:8000",
		},
		Readiness: ReadinessConfig{
			ProtocolAttempts: 10,
			ProtocolDelay:    Duration(10 * time.Second),
			ProgressAttempts: 10,
			ProgressDelay:    Duration(6 * time.Second),
			MinAdvance:       2,
		},
		Report: ReportConfig{
			Dir:      "reports",
			S3Prefix: "chaincheck",
		},
		Format: FormatPretty,
	}
}

// Load reads .chaincheck.yml from the repository root when present. A
// missing file is not an error.
func Load(root string) (Config, error) {
	return loadPath(filepath.Join(root, FileName), false)
}

// LoadFile reads the config at an explicitly chosen path. Unlike Load, the
// file must exist: the caller asked for it by name.
func LoadFile(path string) (Config, error) {
	return loadPath(path, true)
}

func loadPath(path string, required bool) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}

	return merge(cfg, fileCfg), nil
}

func merge(base, override Config) Config {
	out := base

	if override.Pipeline != "" {
		out.Pipeline = override.Pipeline
	}
	if override.Node.RPCURL != "" {
		out.Node.RPCURL = override.Node.RPCURL
	}
	if override.Node.DataDir != "" {
		out.Node.DataDir = override.Node.DataDir
	}
	if override.Node.Build != "" {
		out.Node.Build = override.Node.Build
	}
	if override.Node.Start != "" {
		out.Node.Start = override.Node.Start
	}
	if override.Readiness.ProtocolAttempts > 0 {
		out.Readiness.ProtocolAttempts = override.Readiness.ProtocolAttempts
	}
	if override.Readiness.ProtocolDelay > 0 {
		out.Readiness.ProtocolDelay = override.Readiness.ProtocolDelay
	}
	if override.Readiness.ProgressAttempts > 0 {
		out.Readiness.ProgressAttempts = override.Readiness.ProgressAttempts
	}
	if override.Readiness.ProgressDelay > 0 {
		out.Readiness.ProgressDelay = override.Readiness.ProgressDelay
	}
	if override.Readiness.MinAdvance > 0 {
		out.Readiness.MinAdvance = override.Readiness.MinAdvance
	}
	if len(override.Stages) > 0 {
		out.Stages = append([]stage.Stage{}, override.Stages...)
	}
	if override.GitHub.Owner != "" {
		out.GitHub.Owner = override.GitHub.Owner
	}
	if override.GitHub.Repo != "" {
		out.GitHub.Repo = override.GitHub.Repo
	}
	if override.GitHub.BaseURL != "" {
		out.GitHub.BaseURL = override.GitHub.BaseURL
	}
	if override.GitHub.TokenEnv != "" {
		out.GitHub.TokenEnv = override.GitHub.TokenEnv
	}
	if override.Report.Dir != "" {
		out.Report.Dir = override.Report.Dir
	}
	if override.Report.S3Bucket != "" {
		out.Report.S3Bucket = override.Report.S3Bucket
	}
	if override.Report.S3Prefix != "" {
		out.Report.S3Prefix = override.Report.S3Prefix
	}
	if len(override.OnlyStages) > 0 {
		out.OnlyStages = append([]string{}, override.OnlyStages...)
	}
	if len(override.SkipStages) > 0 {
		out.SkipStages = append([]string{}, override.SkipStages...)
	}
	if override.StageTimeout > 0 {
		out.StageTimeout = override.StageTimeout
	}
	if override.Format != "" {
		out.Format = override.Format
	}
	if override.DryRun {
		out.DryRun = true
	}
	if override.Verbose {
		out.Verbose = true
	}

	return out
}

// Token resolves the GitHub API token from the configured environment
// variable, defaulting to GITHUB_TOKEN.
func (g GitHubConfig) Token() string {
	name := g.TokenEnv
	if name == "" {
		name = "GITHUB_TOKEN"
	}
	return os.Getenv(name)
}

// ApplyFlags mutates cfg by applying values from CLI flags when present.
func ApplyFlags(cfg *Config, flags FlagValues) {
	if len(flags.OnlyStages.Values) > 0 {
		cfg.OnlyStages = append([]string{}, flags.OnlyStages.Values...)
	}
	if len(flags.SkipStages.Values) > 0 {
		cfg.SkipStages = append([]string{}, flags.SkipStages.Values...)
	}
	if flags.Format.Set {
		cfg.Format = flags.Format.Value
	}
	if flags.DryRun.Set {
		cfg.DryRun = flags.DryRun.Value
	}
	if flags.Verbose.Set {
		cfg.Verbose = flags.Verbose.Value
	}
}

// FlagValues captures CLI flag state with knowledge of whether each flag
// was set explicitly.
type FlagValues struct {
	OnlyStages SliceFlag
	SkipStages SliceFlag
	Format     StringFlag
	DryRun     BoolFlag
	Verbose    BoolFlag
}

// StringFlag represents a string flag and whether it was set.
type StringFlag struct {
	Value string
	Set   bool
}

// SliceFlag represents a slice flag and whether it captured values via CLI.
type SliceFlag struct {
	Values []string
}

// BoolFlag represents a bool flag and whether it was set.
type BoolFlag struct {
	Value bool
	Set   bool
}

// Duration is a time.Duration that unmarshals from yaml strings like "10s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }
