package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkrell/chaincheck/internal/config"
	"github.com/mkrell/chaincheck/internal/trigger"
)

func gatherFlags(cmd *cobra.Command) (config.FlagValues, error) {
	flags := cmd.Flags()
	var values config.FlagValues

	if flags.Changed("only-stage") {
		v, err := flags.GetStringArray("only-stage")
		if err != nil {
			return values, fmt.Errorf("parse --only-stage: %w", err)
		}
		values.OnlyStages = config.SliceFlag{Values: append([]string{}, v...)}
	}

	if flags.Changed("skip-stage") {
		v, err := flags.GetStringArray("skip-stage")
		if err != nil {
			return values, fmt.Errorf("parse --skip-stage: %w", err)
		}
		values.SkipStages = config.SliceFlag{Values: append([]string{}, v...)}
	}

	if flags.Changed("format") {
		v, err := flags.GetString("format")
		if err != nil {
			return values, fmt.Errorf("parse --format: %w", err)
		}
		values.Format = config.StringFlag{Value: v, Set: true}
	}

	if flags.Changed("dry-run") {
		v, err := flags.GetBool("dry-run")
		if err != nil {
			return values, fmt.Errorf("parse --dry-run: %w", err)
		}
		values.DryRun = config.BoolFlag{Value: v, Set: true}
	}

	if flags.Changed("verbose") {
		v, err := flags.GetBool("verbose")
		if err != nil {
			return values, fmt.Errorf("parse --verbose: %w", err)
		}
		values.Verbose = config.BoolFlag{Value: v, Set: true}
	}

	return values, nil
}

// gatherTrigger builds the trigger context exactly once at the CLI
// boundary; every component downstream receives it as a parameter.
func gatherTrigger(cmd *cobra.Command) (trigger.Context, error) {
	flags := cmd.Flags()

	name, err := flags.GetString("trigger")
	if err != nil {
		return trigger.Context{}, fmt.Errorf("parse --trigger: %w", err)
	}
	revision, err := flags.GetString("revision")
	if err != nil {
		return trigger.Context{}, fmt.Errorf("parse --revision: %w", err)
	}
	pull, err := flags.GetString("pr")
	if err != nil {
		return trigger.Context{}, fmt.Errorf("parse --pr: %w", err)
	}

	return trigger.Parse(name, revision, pull)
}
