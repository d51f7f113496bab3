package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "chaincheck",
		Short:         "Chaincheck validates node revisions against the conformance suite",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	persistent := cmd.PersistentFlags()
	persistent.String("config", "", "path to the pipeline config file (default .chaincheck.yml in the working directory)")
	persistent.String("trigger", "push", "what started this run (push|regression|dispatch)")
	persistent.String("revision", "", "revision to validate (dispatch trigger only)")
	persistent.String("pr", "", "pull request to validate as owner/repo#number (dispatch trigger only)")
	persistent.StringArray("only-stage", nil, "include only matching stages")
	persistent.StringArray("skip-stage", nil, "exclude matching stages")
	persistent.Bool("dry-run", false, "resolve and plan without deploying or executing stages")
	persistent.BoolP("verbose", "v", false, "stream stage output in real time")
	persistent.String("format", "pretty", "output format (pretty|json)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newPublishImageCmd())

	return cmd
}
