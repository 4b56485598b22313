package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/open-edge-platform/otapatch/internal/apperr"
	"github.com/open-edge-platform/otapatch/internal/apply"
	"github.com/open-edge-platform/otapatch/internal/display"
	"github.com/open-edge-platform/otapatch/internal/logger"
	"github.com/open-edge-platform/otapatch/internal/patchset"
)

var (
	manifestPath   string
	sourceOverride string
	targetOverride string
	outputFormat   string
)

func newApplyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "apply a patch described by a manifest",
		Long: `Apply loads a manifest describing a source, a target, and a set of
candidate patches, then runs the patch-application state machine: triage
the available source material, decode the matching patch, verify the
result by digest, and commit it to the target.`,
		RunE: executeApply,
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "", "path to the patch manifest (YAML or JSON)")
	cmd.Flags().StringVar(&sourceOverride, "source", "", "override the manifest's source locator")
	cmd.Flags().StringVar(&targetOverride, "target", "", "override the manifest's target locator")
	cmd.Flags().StringVar(&outputFormat, "format", "text", "output format: text or json")
	_ = cmd.MarkFlagRequired("manifest")

	return cmd
}

func executeApply(cmd *cobra.Command, args []string) error {
	if verbose {
		logger.SetDebug()
	}

	manifest, err := patchset.LoadManifest(manifestPath)
	if err != nil {
		return fmt.Errorf("load manifest %s: %w", manifestPath, err)
	}

	source := manifest.Source
	if sourceOverride != "" {
		source = sourceOverride
	}
	target := manifest.Target
	if targetOverride != "" {
		target = targetOverride
	}

	bar := progressbar.NewOptions64(manifest.TargetSize,
		progressbar.OptionSetDescription("applying patch"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowBytes(true),
		progressbar.OptionThrottle(200*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)

	start := time.Now()
	applyErr := apply.Apply(cmd.Context(), source, target, manifest.TargetDigest, manifest.TargetSize, manifest.PatchSet)
	_ = bar.Finish()
	duration := time.Since(start)

	result := display.Result{
		Source:   source,
		Target:   target,
		Digest:   manifest.TargetDigest,
		Size:     manifest.TargetSize,
		Duration: duration,
	}
	if applyErr != nil {
		result.Err = applyErr.Error()
	}

	switch outputFormat {
	case "json":
		if err := display.WriteJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	default:
		display.PrintSummary(result)
	}

	return applyErr
}

// Exit codes let a calling flashing/OTA harness branch on failure cause
// without parsing the error text.
const (
	exitOK = iota
	exitGeneric
	exitInsufficientSpace
	exitDigestMismatch
	exitCorruptSource
	exitUnknownPatchFormat
	exitIO
)

func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, apperr.ErrInsufficientSpace):
		return exitInsufficientSpace
	case errors.Is(err, apperr.ErrDigestMismatch):
		return exitDigestMismatch
	case errors.Is(err, apperr.ErrCorruptSource):
		return exitCorruptSource
	case errors.Is(err, apperr.ErrUnknownPatchFormat):
		return exitUnknownPatchFormat
	case errors.Is(err, apperr.ErrIO):
		return exitIO
	default:
		return exitGeneric
	}
}
