package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mkrell/chaincheck/internal/registry"
)

func newPublishImageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish-image",
		Short: "Push a node image and verify it reports its own version",
		RunE:  publishImageExecute,
	}

	flags := cmd.Flags()
	flags.String("image", "", "image reference to publish")
	flags.StringArray("tag", nil, "tag to push (repeatable)")
	flags.StringArray("label", nil, "label to bake into the image as key=value (repeatable)")
	flags.String("expect-version", "", "version string the published image must report")
	_ = cmd.MarkFlagRequired("image")
	_ = cmd.MarkFlagRequired("tag")
	_ = cmd.MarkFlagRequired("expect-version")

	return cmd
}

func publishImageExecute(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	image, err := flags.GetString("image")
	if err != nil {
		return fmt.Errorf("parse --image: %w", err)
	}
	tags, err := flags.GetStringArray("tag")
	if err != nil {
		return fmt.Errorf("parse --tag: %w", err)
	}
	wantVersion, err := flags.GetString("expect-version")
	if err != nil {
		return fmt.Errorf("parse --expect-version: %w", err)
	}
	rawLabels, err := flags.GetStringArray("label")
	if err != nil {
		return fmt.Errorf("parse --label: %w", err)
	}
	labels, err := parseLabels(rawLabels)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	client := registry.New()

	digest, err := client.Push(ctx, image, tags, labels)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pushed %s (%s)\n", image, digest)

	// The publish is not complete until the pushed artifact proves it
	// reports the expected version.
	ref := image + ":" + tags[0]
	if err := client.VerifyVersion(ctx, ref, wantVersion); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "verified %s reports version %s\n", ref, wantVersion)
	return nil
}

func parseLabels(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	labels := make(map[string]string, len(raw))
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("malformed label %q, want key=value", kv)
		}
		labels[key] = value
	}
	return labels, nil
}
