package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mkrell/chaincheck/internal/config"
	"github.com/mkrell/chaincheck/internal/deploy"
	"github.com/mkrell/chaincheck/internal/githubapi"
	"github.com/mkrell/chaincheck/internal/output"
	"github.com/mkrell/chaincheck/internal/publish"
	"github.com/mkrell/chaincheck/internal/readiness"
	"github.com/mkrell/chaincheck/internal/report"
	"github.com/mkrell/chaincheck/internal/resolve"
	"github.com/mkrell/chaincheck/internal/rpc"
	"github.com/mkrell/chaincheck/internal/runner"
	"github.com/mkrell/chaincheck/internal/stage"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Deploy a throwaway node and execute the conformance stages",
		RunE:  runExecute,
	}
}

func runExecute(cmd *cobra.Command, args []string) error {
	cfg, root, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	trig, err := gatherTrigger(cmd)
	if err != nil {
		return err
	}

	stages, err := selectStages(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	logger := log.New(cmd.ErrOrStderr(), "[chaincheck] ", log.LstdFlags)

	github := githubapi.New(githubapi.Config{
		BaseURL: cfg.GitHub.BaseURL,
		Token:   cfg.GitHub.Token(),
	})
	rpcClient := rpc.New(cfg.Node.RPCURL, nil)

	var store report.Store
	if cfg.Report.S3Bucket != "" {
		s3Store, err := report.NewS3Store(ctx, cfg.Report.S3Bucket, cfg.Report.S3Prefix)
		if err != nil {
			return err
		}
		store = s3Store
	} else {
		store = &report.DirStore{Root: cfg.Report.Dir}
	}

	orch := &deploy.Orchestrator{
		Pipeline: cfg.Pipeline,
		Trigger:  trig,
		Resolver: &resolve.Resolver{Pulls: github, Root: root},
		Deployer: &deploy.NodeDeployer{
			Root:     root,
			DataDir:  cfg.Node.DataDir,
			BuildCmd: cfg.Node.Build,
			StartCmd: cfg.Node.Start,
			Stdout:   cmd.ErrOrStderr(),
			Stderr:   cmd.ErrOrStderr(),
		},
		Gate: readiness.New(rpcClient, readiness.Config{
			ProtocolAttempts: cfg.Readiness.ProtocolAttempts,
			ProtocolDelay:    cfg.Readiness.ProtocolDelay.Std(),
			ProgressAttempts: cfg.Readiness.ProgressAttempts,
			ProgressDelay:    cfg.Readiness.ProgressDelay.Std(),
			MinAdvance:       cfg.Readiness.MinAdvance,
		}),
		Runner: runner.New(runner.Options{
			Root:         root,
			Stdout:       cmd.OutOrStdout(),
			Stderr:       cmd.ErrOrStderr(),
			Verbose:      cfg.Verbose,
			DryRun:       cfg.DryRun,
			StageTimeout: cfg.StageTimeout.Std(),
		}),
		Stages:    stages,
		Store:     store,
		ReportDir: cfg.Report.Dir,
		Publisher: &publish.Publisher{
			Sink:     github,
			Owner:    cfg.GitHub.Owner,
			Repo:     cfg.GitHub.Repo,
			Pipeline: cfg.Pipeline,
		},
		Logger: logger,
		DryRun: cfg.DryRun,
	}

	result, runErr := orch.Run(ctx)
	if renderErr := renderRun(cmd, cfg, result); renderErr != nil {
		return renderErr
	}
	if runErr != nil {
		return runErr
	}
	if result.ExitCode() != 0 {
		return fmt.Errorf("one or more stages failed")
	}
	return nil
}

func selectStages(cfg config.Config) ([]stage.Stage, error) {
	if len(cfg.Stages) == 0 {
		return nil, fmt.Errorf("no stages configured; add a stages list to %s", config.FileName)
	}
	onlyPatterns, err := stage.Compile(cfg.OnlyStages)
	if err != nil {
		return nil, err
	}
	skipPatterns, err := stage.Compile(cfg.SkipStages)
	if err != nil {
		return nil, err
	}
	stages := stage.Filter(cfg.Stages, onlyPatterns, skipPatterns)
	if len(stages) == 0 {
		return nil, fmt.Errorf("stage filters matched nothing")
	}
	return stages, nil
}

func renderRun(cmd *cobra.Command, cfg config.Config, result *deploy.Result) error {
	switch strings.ToLower(cfg.Format) {
	case config.FormatPretty:
		renderer := output.NewPretty(cmd.OutOrStdout())
		return renderer.RenderRun(result.Bundle, result.ReportURL)
	case config.FormatJSON:
		renderer := output.NewJSON(cmd.OutOrStdout())
		return renderer.Render(output.Document{Run: result.Bundle, ReportURL: result.ReportURL})
	default:
		return fmt.Errorf("unsupported format %q", cfg.Format)
	}
}

func loadConfig(cmd *cobra.Command) (config.Config, string, error) {
	root, err := os.Getwd()
	if err != nil {
		return config.Config{}, "", fmt.Errorf("determine working directory: %w", err)
	}

	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, "", fmt.Errorf("parse --config: %w", err)
	}

	var cfg config.Config
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load(root)
	}
	if err != nil {
		return config.Config{}, "", err
	}

	flags, err := gatherFlags(cmd)
	if err != nil {
		return config.Config{}, "", err
	}
	config.ApplyFlags(&cfg, flags)

	return cfg, root, nil
}
